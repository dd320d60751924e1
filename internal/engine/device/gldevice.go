package device

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/planetview/internal/logger"
	"github.com/Faultbox/planetview/pkg/formats"
	"github.com/Faultbox/planetview/pkg/math"
	"github.com/go-gl/gl/v4.1-core/gl"
)

// S3TC compressed internal formats (EXT_texture_compression_s3tc).
const (
	glCompressedRGBADXT1 = 0x83F1
	glCompressedRGBADXT3 = 0x83F2
	glCompressedRGBADXT5 = 0x83F3
)

// GLDevice renders through OpenGL.
// Must be created after the GL context exists.
type GLDevice struct {
	width  int
	height int

	program  uint32
	vao      uint32
	frustum  math.Frustum
	viewProj math.Mat4

	uniforms map[string]int32
}

type glTexture struct {
	id uint32
}

func (t *glTexture) Release() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}

type glBuffer struct {
	id     uint32
	target uint32
}

func (b *glBuffer) Release() {
	if b.id != 0 {
		gl.DeleteBuffers(1, &b.id)
		b.id = 0
	}
}

// NewGL creates the OpenGL device.
func NewGL(width, height int) (*GLDevice, error) {
	d := &GLDevice{width: width, height: height}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	rendererName := gl.GoStr(gl.GetString(gl.RENDERER))
	logger.Info("OpenGL initialized",
		zap.String("version", version),
		zap.String("renderer", rendererName),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0, 0, 0, 1)

	var err error
	d.program, err = buildProgram(tileVertexShader, tileFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile shader: %w", err)
	}

	gl.GenVertexArrays(1, &d.vao)

	d.uniforms = make(map[string]int32)
	for _, name := range []string{
		"uWorld", "uViewProj", "uUVRect", "uTex", "uMask", "uMicro",
		"uSunDir", "uSpecular", "uAmbient", "uMicroLevel",
		"uUseSpecular", "uRipple", "uUseLights", "uUseMicro", "uFog",
	} {
		d.uniforms[name] = gl.GetUniformLocation(d.program, gl.Str(name+"\x00"))
	}

	return d, nil
}

// Close releases the device's own GL objects.
func (d *GLDevice) Close() {
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
	}
	if d.program != 0 {
		gl.DeleteProgram(d.program)
	}
}

// Resize updates the viewport.
func (d *GLDevice) Resize(width, height int) {
	d.width, d.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
}

// BeginFrame clears the framebuffer.
func (d *GLDevice) BeginFrame() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Viewport returns the current viewport dimensions.
func (d *GLDevice) Viewport() (int, int) {
	return d.width, d.height
}

// SetCamera sets the view-projection matrix for the frame.
func (d *GLDevice) SetCamera(viewProj math.Mat4) {
	d.viewProj = viewProj
	d.frustum = math.FrustumFromMatrix(viewProj)
}

// IsVisible tests a world-space bounding sphere against the frustum.
func (d *GLDevice) IsVisible(center math.Vec3, radius float32) bool {
	return d.frustum.SphereVisible(center, radius)
}

// CreateVertexBuffer uploads an immutable vertex buffer.
func (d *GLDevice) CreateVertexBuffer(vtx []VertexTex2) (VertexBuffer, error) {
	if len(vtx) == 0 {
		return nil, fmt.Errorf("empty vertex buffer")
	}
	b := &glBuffer{target: gl.ARRAY_BUFFER}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(b.target, b.id)
	gl.BufferData(b.target, len(vtx)*VertexTex2Stride, gl.Ptr(vtx), gl.STATIC_DRAW)
	gl.BindBuffer(b.target, 0)
	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		b.Release()
		return nil, fmt.Errorf("vertex buffer upload failed: GL error 0x%x", glErr)
	}
	return b, nil
}

// CreateIndexBuffer uploads an immutable 16-bit index buffer.
func (d *GLDevice) CreateIndexBuffer(idx []uint16) (IndexBuffer, error) {
	if len(idx) == 0 {
		return nil, fmt.Errorf("empty index buffer")
	}
	b := &glBuffer{target: gl.ELEMENT_ARRAY_BUFFER}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(b.target, b.id)
	gl.BufferData(b.target, len(idx)*2, gl.Ptr(idx), gl.STATIC_DRAW)
	gl.BindBuffer(b.target, 0)
	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		b.Release()
		return nil, fmt.Errorf("index buffer upload failed: GL error 0x%x", glErr)
	}
	return b, nil
}

// CreateCompressedTexture allocates a DXT texture and uploads the top mip.
// Managed allocation uploads directly from client memory; default-pool
// allocation stages the payload through a pixel unpack buffer.
func (d *GLDevice) CreateCompressedTexture(width, height uint32, format formats.DDSFormat, payload []byte, managed bool) (Texture, error) {
	var internal uint32
	switch format {
	case formats.DXT1:
		internal = glCompressedRGBADXT1
	case formats.DXT3:
		internal = glCompressedRGBADXT3
	case formats.DXT5:
		internal = glCompressedRGBADXT5
	default:
		return nil, fmt.Errorf("unsupported compressed format %s", format)
	}

	t := &glTexture{}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	if managed {
		gl.CompressedTexImage2D(gl.TEXTURE_2D, 0, internal,
			int32(width), int32(height), 0, int32(len(payload)), gl.Ptr(payload))
	} else {
		var pbo uint32
		gl.GenBuffers(1, &pbo)
		gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, pbo)
		gl.BufferData(gl.PIXEL_UNPACK_BUFFER, len(payload), gl.Ptr(payload), gl.STREAM_DRAW)
		gl.CompressedTexImage2D(gl.TEXTURE_2D, 0, internal,
			int32(width), int32(height), 0, int32(len(payload)), nil)
		gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, 0)
		gl.DeleteBuffers(1, &pbo)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		t.Release()
		return nil, fmt.Errorf("compressed texture %dx%d upload failed: GL error 0x%x", width, height, glErr)
	}
	return t, nil
}

// DrawIndexed submits one surface patch.
func (d *GLDevice) DrawIndexed(call *DrawCall) {
	vb, vok := call.VB.(*glBuffer)
	ib, iok := call.IB.(*glBuffer)
	if !vok || !iok {
		return
	}

	gl.UseProgram(d.program)
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.id)

	stride := int32(VertexTex2Stride)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 12)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 24)
	gl.VertexAttribPointerWithOffset(3, 2, gl.FLOAT, false, stride, 32)
	for i := uint32(0); i < 4; i++ {
		gl.EnableVertexAttribArray(i)
	}

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ib.id)

	world := call.World
	viewProj := d.viewProj
	gl.UniformMatrix4fv(d.uniforms["uWorld"], 1, false, world.Ptr())
	gl.UniformMatrix4fv(d.uniforms["uViewProj"], 1, false, viewProj.Ptr())
	gl.Uniform4f(d.uniforms["uUVRect"], call.UMin, call.VMin, call.UMax-call.UMin, call.VMax-call.VMin)
	gl.Uniform3f(d.uniforms["uSunDir"], call.SunDir.X, call.SunDir.Y, call.SunDir.Z)
	gl.Uniform3f(d.uniforms["uSpecular"], call.Specular[0], call.Specular[1], call.Specular[2])
	gl.Uniform3f(d.uniforms["uAmbient"], call.Ambient[0], call.Ambient[1], call.Ambient[2])
	gl.Uniform1f(d.uniforms["uMicroLevel"], call.MicroLevel)
	gl.Uniform1i(d.uniforms["uFog"], boolInt(call.Fog))

	bindTex := func(unit uint32, name string, t Texture) bool {
		gt, ok := t.(*glTexture)
		if !ok || gt == nil {
			return false
		}
		gl.ActiveTexture(gl.TEXTURE0 + unit)
		gl.BindTexture(gl.TEXTURE_2D, gt.id)
		gl.Uniform1i(d.uniforms[name], int32(unit))
		return true
	}

	bindTex(0, "uTex", call.Tex)
	hasMask := call.Mask != nil && bindTex(1, "uMask", call.Mask)
	hasMicro := call.Micro != nil && bindTex(2, "uMicro", call.Micro)

	gl.Uniform1i(d.uniforms["uUseSpecular"], boolInt(call.UseSpecular && hasMask))
	gl.Uniform1i(d.uniforms["uRipple"], boolInt(call.Ripple))
	gl.Uniform1i(d.uniforms["uUseLights"], boolInt(call.UseLights && hasMask))
	gl.Uniform1i(d.uniforms["uUseMicro"], boolInt(hasMicro))

	gl.DrawElements(gl.TRIANGLES, int32(call.FaceCount*3), gl.UNSIGNED_SHORT, nil)

	gl.BindVertexArray(0)
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// buildProgram compiles and links a shader program.
func buildProgram(vsSource, fsSource string) (uint32, error) {
	vs, err := compileShader(vsSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	defer gl.DeleteShader(vs)

	fs, err := compileShader(fsSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("fragment shader: %w", err)
	}
	defer gl.DeleteShader(fs)

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link failed: %s", log)
	}
	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %s", log)
	}
	return shader, nil
}

const tileVertexShader = `
#version 410 core

layout(location = 0) in vec3 aPos;
layout(location = 1) in vec3 aNormal;
layout(location = 2) in vec2 aUV0;
layout(location = 3) in vec2 aUV1;

uniform mat4 uWorld;
uniform mat4 uViewProj;
uniform vec4 uUVRect; // offset.xy, scale.xy

out vec3 vNormal;
out vec2 vUV;
out vec2 vMicroUV;

void main() {
	vec4 world = uWorld * vec4(aPos, 1.0);
	gl_Position = uViewProj * world;
	vNormal = mat3(uWorld) * aNormal;
	vUV = uUVRect.xy + aUV0 * uUVRect.zw;
	vMicroUV = aUV1;
}
`

const tileFragmentShader = `
#version 410 core

in vec3 vNormal;
in vec2 vUV;
in vec2 vMicroUV;

uniform sampler2D uTex;
uniform sampler2D uMask;
uniform sampler2D uMicro;

uniform vec3 uSunDir;
uniform vec3 uSpecular;
uniform vec3 uAmbient;
uniform float uMicroLevel;
uniform int uUseSpecular;
uniform int uRipple;
uniform int uUseLights;
uniform int uUseMicro;
uniform int uFog;

out vec4 fragColor;

void main() {
	vec3 n = normalize(vNormal);
	float daylight = max(dot(n, uSunDir), 0.0);
	vec4 base = texture(uTex, vUV);

	vec3 color = base.rgb * (daylight + uAmbient);

	if (uUseMicro == 1) {
		vec3 micro = texture(uMicro, vMicroUV).rgb;
		color = mix(color, color * micro * 2.0, uMicroLevel);
	}

	if (uUseSpecular == 1) {
		float wet = texture(uMask, vUV).a;
		float exponent = uRipple == 1 ? 6.0 : 10.0;
		color += uSpecular * wet * pow(daylight, exponent);
	}

	if (uUseLights == 1) {
		float night = clamp(-dot(n, uSunDir) * 2.0, 0.0, 1.0);
		color += texture(uMask, vUV).rgb * night;
	}

	fragColor = vec4(color, 1.0);
}
`
