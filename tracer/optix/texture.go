package optix

import (
	"encoding/binary"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"golang.org/x/image/draw"

	"github.com/lumenrt/lumen/rt"
)

// maxEnvironmentDim caps the environment map resolution; larger images
// are resampled down to keep the CDF tables small.
const maxEnvironmentDim = 4096

// loadImage decodes an image file into RGBA. Any failure substitutes a
// deterministic placeholder so texture problems never abort setup.
func loadImage(path string) *image.RGBA {
	f, err := os.Open(path)
	if err != nil {
		logger.Warningf("texture: opening %q: %v; using placeholder", path, err)
		return placeholderImage()
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		logger.Warningf("texture: decoding %q: %v; using placeholder", path, err)
		return placeholderImage()
	}
	return toRGBA(src)
}

// placeholderImage is a 2x2 magenta/black checker.
func placeholderImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	magenta := []uint8{255, 0, 255, 255}
	black := []uint8{0, 0, 0, 255}
	copy(img.Pix[0:], magenta)
	copy(img.Pix[4:], black)
	copy(img.Pix[8:], black)
	copy(img.Pix[12:], magenta)
	return img
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)
	return rgba
}

// createTexture uploads an RGBA8 image as a device texture.
func createTexture(api rt.API, img *image.RGBA) (rt.TextureObject, error) {
	bounds := img.Bounds()
	return api.CreateTexture(rt.TextureDesc{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: rt.TextureRGBA8,
		Data:   img.Pix,
	})
}

// environmentMap holds the device resources of a spherical
// environment light: the RGBA32F texture plus the marginal and
// conditional CDF tables used for importance sampling.
type environmentMap struct {
	texture  rt.TextureObject
	cdfU     rt.DevicePtr
	cdfV     rt.DevicePtr
	width    uint32
	height   uint32
	integral float32
}

// newEnvironmentMap loads an environment image, converts it to
// RGBA32F, builds the sampling CDFs and uploads everything.
func newEnvironmentMap(api rt.API, path string) (*environmentMap, error) {
	img := loadImage(path)

	bounds := img.Bounds()
	if bounds.Dx() > maxEnvironmentDim || bounds.Dy() > maxEnvironmentDim {
		img = resample(img, maxEnvironmentDim)
		bounds = img.Bounds()
	}
	width, height := bounds.Dx(), bounds.Dy()

	texels := make([]byte, width*height*16)
	luminance := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			o := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			r := float32(img.Pix[o]) / 255
			g := float32(img.Pix[o+1]) / 255
			b := float32(img.Pix[o+2]) / 255

			binary.LittleEndian.PutUint32(texels[i*16:], math.Float32bits(r))
			binary.LittleEndian.PutUint32(texels[i*16+4:], math.Float32bits(g))
			binary.LittleEndian.PutUint32(texels[i*16+8:], math.Float32bits(b))
			binary.LittleEndian.PutUint32(texels[i*16+12:], math.Float32bits(1))

			// Weight rows by sin(theta) so poles do not dominate.
			sinTheta := math.Sin(math.Pi * (float64(y) + 0.5) / float64(height))
			luminance[i] = float64(0.299*r+0.587*g+0.114*b) * sinTheta
		}
	}

	texture, err := api.CreateTexture(rt.TextureDesc{
		Width:  width,
		Height: height,
		Format: rt.TextureRGBA32F,
		Data:   texels,
	})
	if err != nil {
		return nil, err
	}

	cdfUData, cdfVData, integral := buildCDFs(luminance, width, height)

	env := &environmentMap{
		texture:  texture,
		width:    uint32(width),
		height:   uint32(height),
		integral: integral,
	}

	if env.cdfU, err = uploadFloats(api, cdfUData); err != nil {
		return nil, err
	}
	if env.cdfV, err = uploadFloats(api, cdfVData); err != nil {
		return nil, err
	}
	return env, nil
}

// buildCDFs computes the per-row conditional CDFs (width+1 entries per
// row) and the marginal row CDF (height+1 entries), normalized, plus
// the environment integral.
func buildCDFs(luminance []float64, width, height int) (cdfU, cdfV []float32, integral float32) {
	cdfU = make([]float32, (width+1)*height)
	cdfV = make([]float32, height+1)
	rowSums := make([]float64, height)

	for y := 0; y < height; y++ {
		sum := 0.0
		base := y * (width + 1)
		for x := 0; x < width; x++ {
			sum += luminance[y*width+x]
			cdfU[base+x+1] = float32(sum)
		}
		rowSums[y] = sum
		if sum > 0 {
			for x := 1; x <= width; x++ {
				cdfU[base+x] /= float32(sum)
			}
		}
		cdfU[base+width] = 1
	}

	total := 0.0
	for y := 0; y < height; y++ {
		total += rowSums[y]
		cdfV[y+1] = float32(total)
	}
	if total > 0 {
		for y := 1; y <= height; y++ {
			cdfV[y] /= float32(total)
		}
	}
	cdfV[height] = 1

	return cdfU, cdfV, float32(total / float64(width*height))
}

func uploadFloats(api rt.API, values []float32) (rt.DevicePtr, error) {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	ptr, err := api.Malloc(len(data))
	if err != nil {
		return 0, err
	}
	if err = api.MemcpyHtoD(ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// resample scales an image down so its longest edge equals maxDim.
func resample(img *image.RGBA, maxDim int) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// Release frees the CDF buffers. Texture objects are owned by the
// backend context.
func (e *environmentMap) Release(api rt.API) {
	for _, ptr := range []rt.DevicePtr{e.cdfV, e.cdfU} {
		if ptr == 0 {
			continue
		}
		if err := api.Free(ptr); err != nil {
			logger.Warningf("texture: freeing environment cdf: %v", err)
		}
	}
	e.cdfU, e.cdfV = 0, 0
}
