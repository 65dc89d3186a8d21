package cmd

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/lumenrt/lumen/scene"
	"github.com/lumenrt/lumen/tracer/optix"
)

// Info prints the program catalog and the built-in material set.
func Info(ctx *cli.Context) error {
	setupLogging(ctx)

	env, err := parseEnvironment(ctx.String("env"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Program", "Kind", "Module", "Entry point"})
	for _, info := range optix.ProgramCatalog(env) {
		table.Append([]string{info.Name, info.Kind, info.Module, info.EntryPoint})
	}
	table.Render()
	fmt.Printf("program catalog\n%s\n", buf.String())

	buf.Reset()
	table = tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Material", "BSDF", "Albedo", "IOR", "Thin-walled", "Cutout"})
	for _, mat := range scene.DemoMaterials() {
		table.Append([]string{
			mat.Name,
			fmt.Sprintf("%d", mat.IndexBSDF),
			fmt.Sprintf("%.2f %.2f %.2f", mat.Albedo[0], mat.Albedo[1], mat.Albedo[2]),
			fmt.Sprintf("%.2f", mat.IOR),
			fmt.Sprintf("%t", mat.ThinWalled),
			fmt.Sprintf("%t", mat.UseCutoutTexture),
		})
	}
	table.Render()
	fmt.Printf("material set\n%s", buf.String())
	return nil
}
