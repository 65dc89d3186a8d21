package renderer

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/lumenrt/lumen/rt"
	"github.com/lumenrt/lumen/scene"
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

const vertexShaderSource = `
#version 120

void main()
{
	gl_TexCoord[0] = gl_MultiTexCoord0;
	gl_Position    = ftransform();
}
` + "\x00"

const fragmentShaderSource = `
#version 120

uniform sampler2D samplerHDR;

uniform float invGamma;
uniform vec3  colorBalance;
uniform float invWhitePoint;
uniform float burnHighlights;
uniform float saturation;
uniform float crushBlacks;
uniform float brightness;

void main()
{
	vec3 hdrColor = texture2D(samplerHDR, gl_TexCoord[0].xy).rgb;

	vec3 ldrColor = invWhitePoint * brightness * hdrColor;
	ldrColor *= (ldrColor * burnHighlights + 1.0) / (ldrColor + 1.0);

	float luminance = dot(ldrColor, vec3(0.3, 0.59, 0.11));
	ldrColor = max(mix(vec3(luminance), ldrColor, saturation), 0.0);

	luminance = dot(ldrColor, vec3(0.3, 0.59, 0.11));
	if (luminance < 1.0)
	{
		vec3 crushed = pow(ldrColor, vec3(crushBlacks));
		ldrColor = mix(crushed, ldrColor, sqrt(luminance));
		ldrColor = max(ldrColor, 0.0);
	}

	gl_FragColor = vec4(pow(ldrColor * colorBalance, vec3(invGamma)), 1.0);
}
` + "\x00"

// mouseMode tracks which camera manipulation a mouse button mapped to.
type mouseMode int

const (
	mouseNone mouseMode = iota
	mouseOrbit
	mousePan
	mouseDolly
)

// OpenGLDisplay presents accumulated images through a GLFW window
// using an HDR texture and a tonemapping shader pass. Mouse input
// manipulates the orbit camera.
type OpenGLDisplay struct {
	window  *glfw.Window
	camera  *scene.Camera
	width   int
	height  int
	texture uint32
	program uint32
	mouse   mouseMode
}

// NewOpenGLDisplay creates the window, compiles the tonemap program
// and wires the input callbacks to the camera.
func NewOpenGLDisplay(title string, width, height int, camera *scene.Camera) (*OpenGLDisplay, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("opengl: initializing glfw: %v", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("opengl: creating window: %v", err)
	}
	window.MakeContextCurrent()

	if err = gl.Init(); err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("opengl: initializing bindings: %v", err)
	}

	d := &OpenGLDisplay{
		window: window,
		camera: camera,
		width:  width,
		height: height,
	}
	camera.SetViewport(width, height)

	gl.GenTextures(1, &d.texture)
	gl.BindTexture(gl.TEXTURE_2D, d.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	if d.program, err = buildTonemapProgram(); err != nil {
		glfw.Terminate()
		return nil, err
	}

	window.SetMouseButtonCallback(d.onMouseButton)
	window.SetCursorPosCallback(d.onCursorPos)
	window.SetScrollCallback(d.onScroll)
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		gl.Viewport(0, 0, int32(w), int32(h))
	})
	return d, nil
}

// Active implements Display.
func (d *OpenGLDisplay) Active() bool {
	glfw.PollEvents()
	return !d.window.ShouldClose()
}

// Interop implements Display. Readback presents are used; the
// accumulation buffer stays owned by the tracer.
func (d *OpenGLDisplay) Interop() bool { return false }

// MapOutput implements Display.
func (d *OpenGLDisplay) MapOutput() (rt.DevicePtr, error) {
	return 0, ErrInteropDisabled
}

// UnmapOutput implements Display.
func (d *OpenGLDisplay) UnmapOutput() error {
	return ErrInteropDisabled
}

// Present implements Display: upload the HDR image and draw the
// tonemapped fullscreen quad.
func (d *OpenGLDisplay) Present(pix []float32) error {
	if len(pix) < d.width*d.height*4 {
		return fmt.Errorf("opengl: short image: %d floats", len(pix))
	}

	gl.BindTexture(gl.TEXTURE_2D, d.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F_ARB, int32(d.width), int32(d.height), 0, gl.RGBA, gl.FLOAT, gl.Ptr(pix))

	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(d.program)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, d.texture)

	gl.MatrixMode(gl.PROJECTION)
	gl.LoadIdentity()
	gl.Ortho(0, 1, 0, 1, -1, 1)
	gl.MatrixMode(gl.MODELVIEW)
	gl.LoadIdentity()

	gl.Begin(gl.QUADS)
	gl.TexCoord2f(0, 0)
	gl.Vertex2f(0, 0)
	gl.TexCoord2f(1, 0)
	gl.Vertex2f(1, 0)
	gl.TexCoord2f(1, 1)
	gl.Vertex2f(1, 1)
	gl.TexCoord2f(0, 1)
	gl.Vertex2f(0, 1)
	gl.End()

	gl.UseProgram(0)
	d.window.SwapBuffers()
	return nil
}

// Close implements Display.
func (d *OpenGLDisplay) Close() error {
	gl.DeleteProgram(d.program)
	gl.DeleteTextures(1, &d.texture)
	d.window.Destroy()
	glfw.Terminate()
	return nil
}

func (d *OpenGLDisplay) onMouseButton(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Release {
		d.mouse = mouseNone
		return
	}
	x, y := w.GetCursorPos()
	d.camera.SetBaseCoordinates(int(x), int(y))
	switch button {
	case glfw.MouseButtonLeft:
		d.mouse = mouseOrbit
	case glfw.MouseButtonMiddle:
		d.mouse = mousePan
	case glfw.MouseButtonRight:
		d.mouse = mouseDolly
	}
}

func (d *OpenGLDisplay) onCursorPos(_ *glfw.Window, x, y float64) {
	switch d.mouse {
	case mouseOrbit:
		d.camera.Orbit(int(x), int(y))
	case mousePan:
		d.camera.Pan(int(x), int(y))
	case mouseDolly:
		d.camera.Dolly(int(x), int(y))
	}
}

func (d *OpenGLDisplay) onScroll(_ *glfw.Window, _, yoff float64) {
	d.camera.Zoom(float32(-yoff))
}

func buildTonemapProgram() (uint32, error) {
	vs, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fs, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.LinkProgram(program)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		return 0, fmt.Errorf("opengl: linking tonemap program failed")
	}

	gl.UseProgram(program)
	uniform := func(name string) int32 {
		return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
	}
	gl.Uniform1i(uniform("samplerHDR"), 0)
	gl.Uniform1f(uniform("invGamma"), 1/2.2)
	gl.Uniform3f(uniform("colorBalance"), 1, 1, 1)
	gl.Uniform1f(uniform("invWhitePoint"), 1)
	gl.Uniform1f(uniform("burnHighlights"), 0.8)
	gl.Uniform1f(uniform("crushBlacks"), 0.2)
	gl.Uniform1f(uniform("saturation"), 1.2)
	gl.Uniform1f(uniform("brightness"), 1)
	gl.UseProgram(0)
	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	sources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, sources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := strings.Repeat("\x00", int(logLength)+1)
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(infoLog))
		return 0, fmt.Errorf("opengl: compiling shader: %s", strings.TrimRight(infoLog, "\x00"))
	}
	return shader, nil
}
