package shader

// commonSource is prepended to every stage. Override files must not
// repeat the #version line.
const commonSource = `#version 410 core
#define MAX_LIGHTS 8
#define LIGHT_POINT 0
#define LIGHT_SPOT 1
#define LIGHT_DIRECTIONAL 2
#define SHADOW_NONE 0
#define SHADOW_2D 1
#define SHADOW_CUBE 2
`

// ── Mesh vertex input ─────────────────────────────────────────────────────────

// meshInputs declares the vertex layout plus the per-instance model and
// normal matrices streamed at locations 6-12.
const meshInputs = `
layout(location = 0)  in vec3 in_position;
layout(location = 1)  in vec3 in_normal;
layout(location = 2)  in vec2 in_uv;
layout(location = 3)  in vec4 in_colour;
layout(location = 4)  in vec3 in_tangent;
layout(location = 5)  in vec3 in_bitangent;
layout(location = 6)  in vec4 in_model0;
layout(location = 7)  in vec4 in_model1;
layout(location = 8)  in vec4 in_model2;
layout(location = 9)  in vec4 in_model3;
layout(location = 10) in vec3 in_normal_matrix0;
layout(location = 11) in vec3 in_normal_matrix1;
layout(location = 12) in vec3 in_normal_matrix2;

mat4 instance_model() {
    return mat4(in_model0, in_model1, in_model2, in_model3);
}

mat3 instance_normal_matrix() {
    return mat3(in_normal_matrix0, in_normal_matrix1, in_normal_matrix2);
}
`

// ── Geometry pass ─────────────────────────────────────────────────────────────

// geometryVert outputs view-space position, normal and tangent frame.
const geometryVert = meshInputs + `
uniform mat4  u_view;
uniform mat4  u_projection;
uniform vec2  u_texture_offset;
uniform vec2  u_texture_scale;
uniform bool  u_has_texture_displacement;
uniform sampler2D u_texture_displacement;
uniform float u_displacement_scale;

out vec3 v_position;
out vec3 v_normal;
out vec3 v_tangent;
out vec3 v_bitangent;
out vec2 v_uv;
out vec4 v_colour;

void main() {
    mat4 model = instance_model();
    mat3 normal_matrix = instance_normal_matrix();

    v_uv = in_uv * u_texture_scale + u_texture_offset;
    vec3 position = in_position;
    if (u_has_texture_displacement) {
        position += in_normal * texture(u_texture_displacement, v_uv).r * u_displacement_scale;
    }

    vec4 view_position = u_view * model * vec4(position, 1.0);
    v_position  = view_position.xyz;
    v_normal    = normalize(normal_matrix * in_normal);
    v_tangent   = normalize(normal_matrix * in_tangent);
    v_bitangent = normalize(normal_matrix * in_bitangent);
    v_colour    = in_colour;
    gl_Position = u_projection * view_position;
}
`

// surfaceInputs samples the material. Shared by the geometry and forward
// fragment stages.
const surfaceInputs = `
in vec3 v_position;
in vec3 v_normal;
in vec3 v_tangent;
in vec3 v_bitangent;
in vec2 v_uv;
in vec4 v_colour;

uniform vec4  u_diffuse_colour;
uniform vec4  u_specular_colour;
uniform float u_gloss;

uniform bool u_has_texture_diffuse;
uniform bool u_has_texture_normal;
uniform bool u_has_texture_specular;
uniform bool u_has_texture_gloss;

uniform sampler2D u_texture_diffuse;
uniform sampler2D u_texture_normal;
uniform sampler2D u_texture_specular;
uniform sampler2D u_texture_gloss;

vec4 surface_diffuse() {
    vec4 c = u_diffuse_colour * v_colour;
    if (u_has_texture_diffuse) {
        c *= texture(u_texture_diffuse, v_uv);
    }
    return c;
}

vec4 surface_specular() {
    vec4 c = u_specular_colour;
    if (u_has_texture_specular) {
        c *= texture(u_texture_specular, v_uv);
    }
    return c;
}

float surface_gloss() {
    float g = u_gloss;
    if (u_has_texture_gloss) {
        g *= texture(u_texture_gloss, v_uv).r;
    }
    return g;
}

vec3 surface_normal() {
    vec3 n = normalize(v_normal);
    if (u_has_texture_normal) {
        mat3 tbn = mat3(normalize(v_tangent), normalize(v_bitangent), n);
        n = normalize(tbn * (texture(u_texture_normal, v_uv).rgb * 2.0 - 1.0));
    }
    return n;
}
`

const geometryFrag = surfaceInputs + `
layout(location = 0) out vec4  out_position;
layout(location = 1) out vec4  out_normal;
layout(location = 2) out vec4  out_diffuse;
layout(location = 3) out vec4  out_specular;
layout(location = 4) out float out_gloss;

void main() {
    vec4 diffuse = surface_diffuse();
    if (diffuse.a < 0.5) {
        discard;
    }
    out_position = vec4(v_position, 1.0);
    out_normal   = vec4(surface_normal(), 0.0);
    out_diffuse  = diffuse;
    out_specular = surface_specular();
    out_gloss    = surface_gloss();
}
`

// ── Shadow passes ─────────────────────────────────────────────────────────────

const shadow2DVert = meshInputs + `
uniform mat4 u_view_projection;
uniform vec2 u_texture_offset;
uniform vec2 u_texture_scale;

out vec2 v_uv;

void main() {
    v_uv = in_uv * u_texture_scale + u_texture_offset;
    gl_Position = u_view_projection * instance_model() * vec4(in_position, 1.0);
}
`

// shadowAlpha discards cut-out texels of transparent casters.
const shadowAlpha = `
uniform bool u_is_transparent;
uniform vec4 u_diffuse_colour;
uniform bool u_has_texture_diffuse;
uniform sampler2D u_texture_diffuse;

bool shadow_discard(vec2 uv) {
    if (!u_is_transparent) {
        return false;
    }
    float a = u_diffuse_colour.a;
    if (u_has_texture_diffuse) {
        a *= texture(u_texture_diffuse, uv).a;
    }
    return a < 0.5;
}
`

const shadow2DFrag = shadowAlpha + `
in vec2 v_uv;

void main() {
    if (shadow_discard(v_uv)) {
        discard;
    }
}
`

// shadowCubeVert renders one cube face per draw; u_face selects the
// face's view-projection.
const shadowCubeVert = meshInputs + `
uniform mat4 u_view_projection_matrices[6];
uniform int  u_face;
uniform vec2 u_texture_offset;
uniform vec2 u_texture_scale;

out vec3 v_world;
out vec2 v_uv;

void main() {
    vec4 world = instance_model() * vec4(in_position, 1.0);
    v_world = world.xyz;
    v_uv = in_uv * u_texture_scale + u_texture_offset;
    gl_Position = u_view_projection_matrices[u_face] * world;
}
`

// shadowCubeFrag stores linear distance to the light over the shadow distance.
const shadowCubeFrag = shadowAlpha + `
in vec3 v_world;
in vec2 v_uv;

uniform vec3  u_light_pos;
uniform float u_shadow_distance;

void main() {
    if (shadow_discard(v_uv)) {
        discard;
    }
    gl_FragDepth = length(v_world - u_light_pos) / u_shadow_distance;
}
`

// ── Skybox ────────────────────────────────────────────────────────────────────

// skyboxVert uses the xyww trick so every fragment lands on the far plane.
const skyboxVert = `
layout(location = 0) in vec3 in_position;

uniform mat4 u_view_projection;

out vec3 v_direction;

void main() {
    v_direction = in_position;
    vec4 pos = u_view_projection * vec4(in_position, 1.0);
    gl_Position = pos.xyww;
}
`

const skyboxFrag = `
in vec3 v_direction;

layout(location = 0) out vec4 out_composite;

uniform vec4 u_skybox_colour;
uniform bool u_texture_skybox_enabled;
uniform samplerCube u_texture_skybox;

void main() {
    vec4 colour = u_skybox_colour;
    if (u_texture_skybox_enabled) {
        colour *= texture(u_texture_skybox, normalize(v_direction));
    }
    out_composite = colour;
}
`

// ── Fullscreen ────────────────────────────────────────────────────────────────

// fullscreenVert draws a triangle covering the screen from gl_VertexID.
const fullscreenVert = `
out vec2 v_uv;

void main() {
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    gl_Position = vec4(pos[gl_VertexID], 0.0, 1.0);
    v_uv = pos[gl_VertexID] * 0.5 + 0.5;
}
`

// lightsBlock declares the per-light arrays and the shading helper shared
// by the lighting and forward passes. Positions and directions are in
// camera space.
const lightsBlock = `
uniform vec4  u_ambient;
uniform int   u_num_lights;
uniform int   u_light_mode[MAX_LIGHTS];
uniform float u_light_power[MAX_LIGHTS];
uniform vec3  u_light_colour[MAX_LIGHTS];
uniform vec3  u_light_attenuation[MAX_LIGHTS];
uniform float u_light_cos_inner[MAX_LIGHTS];
uniform float u_light_cos_outer[MAX_LIGHTS];
uniform vec3  u_light_position[MAX_LIGHTS];
uniform vec3  u_light_direction[MAX_LIGHTS];

// shade_light accumulates diffuse and specular radiance from light i.
void shade_light(int i, vec3 P, vec3 N, float gloss, float visibility,
                 inout vec3 diffuse, inout vec3 specular) {
    vec3 L;
    float atten = 1.0;
    if (u_light_mode[i] == LIGHT_DIRECTIONAL) {
        L = -normalize(u_light_direction[i]);
    } else {
        vec3 d = u_light_position[i] - P;
        float dist = length(d);
        L = d / max(dist, 0.0001);
        vec3 k = u_light_attenuation[i];
        atten = 1.0 / max(k.x + k.y * dist + k.z * dist * dist, 0.0001);
        if (u_light_mode[i] == LIGHT_SPOT) {
            float theta = dot(L, -normalize(u_light_direction[i]));
            float eps = max(u_light_cos_inner[i] - u_light_cos_outer[i], 0.0001);
            atten *= clamp((theta - u_light_cos_outer[i]) / eps, 0.0, 1.0);
        }
    }

    float NdL = max(dot(N, L), 0.0);
    vec3 radiance = u_light_colour[i] * u_light_power[i] * atten * visibility;
    diffuse += radiance * NdL;
    if (NdL > 0.0) {
        vec3 V = normalize(-P);
        vec3 H = normalize(L + V);
        specular += radiance * pow(max(dot(N, H), 0.0), max(gloss, 1.0));
    }
}
`

// ── Lighting pass ─────────────────────────────────────────────────────────────

// lightFrag adds this sub-pass's lights to the accumulation read from the
// back buffers. Only light 0 of a sub-pass can be shadowed.
const lightFrag = lightsBlock + `
in vec2 v_uv;

layout(location = 0) out vec4 out_composite;
layout(location = 1) out vec4 out_diffuse;
layout(location = 2) out vec4 out_specular;

uniform sampler2D u_frag_position;
uniform sampler2D u_frag_normal;
uniform sampler2D u_frag_diffuse;
uniform sampler2D u_frag_specular;
uniform sampler2D u_frag_gloss;
uniform sampler2D u_light_diffuse;
uniform sampler2D u_light_specular;

uniform int   u_shadow_mode;
uniform mat4  u_light_view_projection;
uniform vec3  u_shadow_light_position;
uniform float u_shadow_distance;
uniform mat4  u_inverse_view;
uniform sampler2DShadow   u_shadow_map_2d;
uniform samplerCubeShadow u_shadow_map_cube;

float shadow_visibility(vec3 P) {
    if (u_shadow_mode == SHADOW_NONE) {
        return 1.0;
    }
    vec4 world = u_inverse_view * vec4(P, 1.0);
    if (u_shadow_mode == SHADOW_2D) {
        vec4 ls = u_light_view_projection * world;
        vec3 p = ls.xyz / ls.w * 0.5 + 0.5;
        if (p.z > 1.0) {
            return 1.0;
        }
        return texture(u_shadow_map_2d, vec3(p.xy, p.z - 0.002));
    }
    vec3 d = world.xyz - u_shadow_light_position;
    return texture(u_shadow_map_cube, vec4(d, length(d) / u_shadow_distance - 0.005));
}

void main() {
    vec3  P     = texture(u_frag_position, v_uv).xyz;
    vec3  N     = normalize(texture(u_frag_normal, v_uv).xyz);
    float gloss = texture(u_frag_gloss, v_uv).r;

    vec3 diffuse  = texture(u_light_diffuse, v_uv).rgb;
    vec3 specular = texture(u_light_specular, v_uv).rgb;

    for (int i = 0; i < u_num_lights && i < MAX_LIGHTS; i++) {
        float visibility = (i == 0) ? shadow_visibility(P) : 1.0;
        shade_light(i, P, N, gloss, visibility, diffuse, specular);
    }

    vec4 albedo = texture(u_frag_diffuse, v_uv);
    vec3 spec   = texture(u_frag_specular, v_uv).rgb;

    out_diffuse   = vec4(diffuse, 1.0);
    out_specular  = vec4(specular, 1.0);
    out_composite = vec4(albedo.rgb * (u_ambient.rgb + diffuse) + spec * specular, albedo.a);
}
`

// ── Forward pass ──────────────────────────────────────────────────────────────

const forwardFrag = surfaceInputs + lightsBlock + `
layout(location = 0) out vec4 out_composite;
layout(location = 1) out vec4 out_position;
layout(location = 2) out vec4 out_normal;

void main() {
    vec4  albedo = surface_diffuse();
    vec3  N      = surface_normal();
    float gloss  = surface_gloss();

    vec3 diffuse  = vec3(0.0);
    vec3 specular = vec3(0.0);
    for (int i = 0; i < u_num_lights && i < MAX_LIGHTS; i++) {
        shade_light(i, v_position, N, gloss, 1.0, diffuse, specular);
    }

    out_composite = vec4(albedo.rgb * (u_ambient.rgb + diffuse) + surface_specular().rgb * specular, albedo.a);
    out_position  = vec4(v_position, 1.0);
    out_normal    = vec4(N, 0.0);
}
`

// ── Post-processing ───────────────────────────────────────────────────────────

const postCommon = `
in vec2 v_uv;

layout(location = 0) out vec4 out_composite;

uniform float u_near;
uniform float u_far;
uniform vec2  u_bottom_left;
uniform vec2  u_top_right;
uniform sampler2D u_frag_position;
uniform sampler2D u_frag_normal;
uniform sampler2D u_frag_depth;
uniform sampler2D u_composite;
uniform float u_exposure;
uniform float u_fog_density;
uniform vec4  u_fog_colour;
uniform mat4  u_projection;
uniform float u_bloom_threshold;
uniform float u_bloom_strength;
uniform float u_ssao_radius;
uniform float u_ssao_bias;

bool outside_viewport() {
    return any(lessThan(v_uv, u_bottom_left)) || any(greaterThan(v_uv, u_top_right));
}

float linear_depth() {
    float z = texture(u_frag_depth, v_uv).r * 2.0 - 1.0;
    return 2.0 * u_near * u_far / (u_far + u_near - z * (u_far - u_near));
}
`

// tonemapFrag applies exposure, Reinhard tone mapping and gamma 2.2.
const tonemapFrag = postCommon + `
void main() {
    vec4 hdr = texture(u_composite, v_uv);
    if (outside_viewport()) {
        out_composite = hdr;
        return;
    }
    vec3 mapped = vec3(1.0) - exp(-hdr.rgb * u_exposure);
    mapped = pow(mapped, vec3(1.0 / 2.2));
    out_composite = vec4(mapped, hdr.a);
}
`

// fogFrag blends exponential depth fog over geometry pixels.
const fogFrag = postCommon + `
void main() {
    vec4 colour = texture(u_composite, v_uv);
    if (outside_viewport() || texture(u_frag_position, v_uv).w == 0.0) {
        out_composite = colour;
        return;
    }
    float f = clamp(exp(-u_fog_density * linear_depth()), 0.0, 1.0);
    out_composite = vec4(mix(u_fog_colour.rgb, colour.rgb, f), colour.a);
}
`

// bloomFrag adds a blurred bright-pass of the composite back onto it. The
// 5x5 binomial kernel samples every other texel to widen the glow.
const bloomFrag = postCommon + `
const float bloom_weights[5] = float[](0.0625, 0.25, 0.375, 0.25, 0.0625);

vec3 bright(vec2 uv) {
    vec3 c = texture(u_composite, uv).rgb;
    float luma = dot(c, vec3(0.2126, 0.7152, 0.0722));
    return c * step(u_bloom_threshold, luma);
}

void main() {
    vec4 colour = texture(u_composite, v_uv);
    if (outside_viewport()) {
        out_composite = colour;
        return;
    }
    vec2 texel = 2.0 / vec2(textureSize(u_composite, 0));
    vec3 glow = vec3(0.0);
    for (int y = -2; y <= 2; y++) {
        for (int x = -2; x <= 2; x++) {
            glow += bright(v_uv + vec2(x, y) * texel) * bloom_weights[x + 2] * bloom_weights[y + 2];
        }
    }
    out_composite = vec4(colour.rgb + glow * u_bloom_strength, colour.a);
}
`

// ssaoFrag darkens geometry pixels by hemisphere occlusion sampled from the
// view-space position buffer. Kernel and rotation come from a hash instead
// of uniforms and a noise texture.
const ssaoFrag = postCommon + `
const int ssao_samples = 16;

float hash(vec2 p) {
    return fract(sin(dot(p, vec2(12.9898, 78.233))) * 43758.5453);
}

void main() {
    vec4 colour = texture(u_composite, v_uv);
    vec4 position = texture(u_frag_position, v_uv);
    if (outside_viewport() || position.w == 0.0) {
        out_composite = colour;
        return;
    }
    vec3 pos = position.xyz;
    vec3 N = normalize(texture(u_frag_normal, v_uv).xyz);

    vec3 T = abs(N.z) < 0.999 ? normalize(cross(vec3(0.0, 0.0, 1.0), N)) : vec3(1.0, 0.0, 0.0);
    float angle = hash(gl_FragCoord.xy) * 6.2831853;
    T = cos(angle) * T + sin(angle) * cross(N, T);
    mat3 TBN = mat3(T, cross(N, T), N);

    float occ = 0.0;
    for (int i = 0; i < ssao_samples; i++) {
        float fi = float(i);
        vec3 k = normalize(vec3(hash(vec2(fi, 1.0)) * 2.0 - 1.0,
                                hash(vec2(fi, 2.0)) * 2.0 - 1.0,
                                hash(vec2(fi, 3.0)) + 0.05));
        float scale = fi / float(ssao_samples);
        k *= mix(0.1, 1.0, scale * scale) * max(hash(vec2(fi, 4.0)), 0.1);

        vec3 s = pos + TBN * k * u_ssao_radius;
        vec4 clip = u_projection * vec4(s, 1.0);
        vec2 uv = clip.xy / clip.w * 0.5 + 0.5;
        vec4 geo = texture(u_frag_position, uv);
        if (geo.w == 0.0) {
            continue;
        }
        float range = smoothstep(0.0, 1.0, u_ssao_radius / max(abs(pos.z - geo.z), 0.0001));
        occ += (geo.z >= s.z + u_ssao_bias ? 1.0 : 0.0) * range;
    }
    float ao = 1.0 - occ / float(ssao_samples);
    out_composite = vec4(colour.rgb * ao, colour.a);
}
`
