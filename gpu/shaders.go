package gpu

// Pixels travel through the pipeline as packed rgba8 words in storage
// buffers, one u32 per pixel, unpacked to unorm floats on load. Passes
// communicate through intermediate buffers, so each pass quantizes its
// output to 8 bits exactly like the CPU reference does between stages.
//
// The blur kernels and the selective color bands are fully unrolled:
// naga's SPIR-V backend miscompiles loops over local arrays (only the
// first iteration runs), so no shader below contains a loop.

// geometryShaderSrc inverse-maps every output pixel through the chain
// crop → flip → rotate → keystone → straighten back to a source sample
// position, then samples bilinearly. Out-of-source samples produce the
// opaque black fill.
const geometryShaderSrc = `
struct GeoParams {
    src_width: f32,
    src_height: f32,
    dst_width: f32,
    dst_height: f32,
    straighten_rad: f32,
    rotate_mode: f32,
    flip_h: f32,
    flip_v: f32,
    crop_x: f32,
    crop_y: f32,
    crop_w: f32,
    crop_h: f32,
    persp_r0: vec4<f32>,
    persp_r1: vec4<f32>,
    persp_r2: vec4<f32>,
};

@group(0) @binding(0)
var<storage, read> src_pixels: array<u32>;
@group(0) @binding(1)
var<storage, read_write> dst_pixels: array<u32>;
@group(0) @binding(2)
var<uniform> params: GeoParams;

fn load_px(x: i32, y: i32, sw: i32) -> vec4<f32> {
    return unpack4x8unorm(src_pixels[u32(y * sw + x)]);
}

fn bilinear_sample(x: f32, y: f32, sw: i32, sh: i32) -> vec4<f32> {
    let fx = floor(x);
    let fy = floor(y);
    let ix = i32(fx);
    let iy = i32(fy);
    let dx = x - fx;
    let dy = y - fy;

    // Near-integer coords come from exact remaps such as rotation and
    // flip; nearest neighbor avoids reading past the last row/column.
    if (dx < 0.001 && dy < 0.001) {
        if (ix < 0 || ix >= sw || iy < 0 || iy >= sh) {
            return vec4<f32>(0.0, 0.0, 0.0, 1.0);
        }
        return load_px(ix, iy, sw);
    }

    if (ix < 0 || ix + 1 >= sw || iy < 0 || iy + 1 >= sh) {
        return vec4<f32>(0.0, 0.0, 0.0, 1.0);
    }

    let p00 = load_px(ix, iy, sw);
    let p10 = load_px(ix + 1, iy, sw);
    let p01 = load_px(ix, iy + 1, sw);
    let p11 = load_px(ix + 1, iy + 1, sw);
    let top = mix(p00, p10, dx);
    let bot = mix(p01, p11, dx);
    return mix(top, bot, dy);
}

@compute @workgroup_size(16, 16, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let dw = i32(params.dst_width + 0.5);
    let dh = i32(params.dst_height + 0.5);
    if (i32(gid.x) >= dw || i32(gid.y) >= dh) {
        return;
    }

    let sw = i32(params.src_width + 0.5);
    let sh = i32(params.src_height + 0.5);
    let rot = i32(params.rotate_mode + 0.5);

    var px = f32(gid.x) + 0.5;
    var py = f32(gid.y) + 0.5;

    px = px + params.crop_x;
    py = py + params.crop_y;

    var post_rot_w: f32;
    var post_rot_h: f32;
    if (rot == 90 || rot == 270) {
        post_rot_w = params.src_height;
        post_rot_h = params.src_width;
    } else {
        post_rot_w = params.src_width;
        post_rot_h = params.src_height;
    }

    if (params.flip_h > 0.5) {
        px = post_rot_w - px;
    }
    if (params.flip_v > 0.5) {
        py = post_rot_h - py;
    }

    var rx: f32;
    var ry: f32;
    if (rot == 90) {
        rx = py;
        ry = params.src_height - px;
    } else if (rot == 180) {
        rx = params.src_width - px;
        ry = params.src_height - py;
    } else if (rot == 270) {
        rx = params.src_width - py;
        ry = px;
    } else {
        rx = px;
        ry = py;
    }

    // Perspective and straighten work in integer-pixel coordinates.
    rx = rx - 0.5;
    ry = ry - 0.5;

    let denom = params.persp_r2.x * rx + params.persp_r2.y * ry + params.persp_r2.z;
    if (abs(denom) > 1e-8) {
        let nx = (params.persp_r0.x * rx + params.persp_r0.y * ry + params.persp_r0.z) / denom;
        let ny = (params.persp_r1.x * rx + params.persp_r1.y * ry + params.persp_r1.z) / denom;
        rx = nx;
        ry = ny;
    }

    if (abs(params.straighten_rad) > 0.0001) {
        let cx = f32(sw) * 0.5;
        let cy = f32(sh) * 0.5;
        let drx = rx - cx;
        let dry = ry - cy;
        let angle = -params.straighten_rad;
        let cos_a = cos(angle);
        let sin_a = sin(angle);
        rx = drx * cos_a - dry * sin_a + cx;
        ry = drx * sin_a + dry * cos_a + cy;
    }

    let color = bilinear_sample(rx, ry, sw, sh);
    dst_pixels[gid.y * u32(dw) + gid.x] = pack4x8unorm(color);
}
`

// colorShaderSrc applies the tone and color chain per pixel: exposure,
// contrast, shadow/highlight recovery, temperature, global hue and
// saturation, eight selective color bands and the graduated filter.
const colorShaderSrc = `
struct Params {
    width: f32,
    height: f32,
    exposure: f32,
    contrast: f32,
    highlights: f32,
    shadows: f32,
    temperature: f32,
    saturation: f32,
    hue_shift: f32,
    grad_enabled: f32,
    grad_top: f32,
    grad_bottom: f32,
    grad_exposure: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
    sel_hue_0: f32, sel_sat_0: f32, sel_light_0: f32,
    sel_hue_1: f32, sel_sat_1: f32, sel_light_1: f32,
    sel_hue_2: f32, sel_sat_2: f32, sel_light_2: f32,
    sel_hue_3: f32, sel_sat_3: f32, sel_light_3: f32,
    sel_hue_4: f32, sel_sat_4: f32, sel_light_4: f32,
    sel_hue_5: f32, sel_sat_5: f32, sel_light_5: f32,
    sel_hue_6: f32, sel_sat_6: f32, sel_light_6: f32,
    sel_hue_7: f32, sel_sat_7: f32, sel_light_7: f32,
};

@group(0) @binding(0)
var<storage, read> src_pixels: array<u32>;
@group(0) @binding(1)
var<storage, read_write> dst_pixels: array<u32>;
@group(0) @binding(2)
var<uniform> params: Params;

fn smoothstep_f(edge0: f32, edge1: f32, x: f32) -> f32 {
    let t = clamp((x - edge0) / (edge1 - edge0), 0.0, 1.0);
    return t * t * (3.0 - 2.0 * t);
}

fn wrap_unit(v: f32) -> f32 {
    return fract(v + 1000.0);
}

fn rgb_to_hsl(rgb: vec3<f32>) -> vec3<f32> {
    let max_c = max(rgb.r, max(rgb.g, rgb.b));
    let min_c = min(rgb.r, min(rgb.g, rgb.b));
    let l = (max_c + min_c) * 0.5;
    let d = max_c - min_c;
    if (d <= 1e-6) {
        return vec3<f32>(0.0, 0.0, clamp(l, 0.0, 1.0));
    }

    var h: f32;
    if (max_c == rgb.r) {
        h = (rgb.g - rgb.b) / d;
        if (h < 0.0) {
            h = h + 6.0;
        }
    } else if (max_c == rgb.g) {
        h = ((rgb.b - rgb.r) / d) + 2.0;
    } else {
        h = ((rgb.r - rgb.g) / d) + 4.0;
    }
    h = h / 6.0;
    let s = d / max(1.0 - abs(2.0 * l - 1.0), 1e-6);
    return vec3<f32>(wrap_unit(h), clamp(s, 0.0, 1.0), clamp(l, 0.0, 1.0));
}

fn hue_to_rgb(p: f32, q: f32, t_raw: f32) -> f32 {
    let t = wrap_unit(t_raw);
    if (t < (1.0 / 6.0)) {
        return p + (q - p) * 6.0 * t;
    }
    if (t < 0.5) {
        return q;
    }
    if (t < (2.0 / 3.0)) {
        return p + (q - p) * ((2.0 / 3.0) - t) * 6.0;
    }
    return p;
}

fn hsl_to_rgb(hsl: vec3<f32>) -> vec3<f32> {
    let h = hsl.x;
    let s = hsl.y;
    let l = hsl.z;
    if (s <= 1e-6) {
        return vec3<f32>(l, l, l);
    }
    let q = select(l + s - l * s, l * (1.0 + s), l < 0.5);
    let p = 2.0 * l - q;
    let r = hue_to_rgb(p, q, h + 1.0 / 3.0);
    let g = hue_to_rgb(p, q, h);
    let b = hue_to_rgb(p, q, h - 1.0 / 3.0);
    return vec3<f32>(clamp(r, 0.0, 1.0), clamp(g, 0.0, 1.0), clamp(b, 0.0, 1.0));
}

fn hue_distance_deg(a: f32, b: f32) -> f32 {
    let diff = abs(a - b);
    return min(diff, 360.0 - diff);
}

fn selective_weight(hue_unit: f32, center_deg: f32) -> f32 {
    let hue_deg = wrap_unit(hue_unit) * 360.0;
    let dist = hue_distance_deg(hue_deg, center_deg);
    if (dist >= 30.0) {
        return 0.0;
    }
    return 1.0 - (dist / 30.0);
}

fn apply_band(hsl: vec3<f32>, sh: f32, ss: f32, sl: f32, center: f32) -> vec3<f32> {
    if (abs(sh) < 0.001 && abs(ss) < 0.001 && abs(sl) < 0.001) {
        return hsl;
    }
    let w = selective_weight(hsl.x, center);
    if (w <= 0.0) {
        return hsl;
    }
    return vec3<f32>(
        wrap_unit(hsl.x + (sh / 360.0) * w),
        clamp(hsl.y * (1.0 + ss * w), 0.0, 1.0),
        clamp(hsl.z + sl * w, 0.0, 1.0),
    );
}

@compute @workgroup_size(16, 16, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let width = u32(params.width + 0.5);
    let height = u32(params.height + 0.5);
    if (gid.x >= width || gid.y >= height) {
        return;
    }

    let px = unpack4x8unorm(src_pixels[gid.y * width + gid.x]);
    var r = px.r;
    var g = px.g;
    var b = px.b;

    let exposure_gain = exp2(clamp(params.exposure, -5.0, 5.0));
    let contrast_gain = 1.0 + clamp(params.contrast, -1.0, 1.0);
    r = clamp((r * exposure_gain - 0.5) * contrast_gain + 0.5, 0.0, 1.0);
    g = clamp((g * exposure_gain - 0.5) * contrast_gain + 0.5, 0.0, 1.0);
    b = clamp((b * exposure_gain - 0.5) * contrast_gain + 0.5, 0.0, 1.0);

    let highlights = clamp(params.highlights, -1.0, 1.0);
    let shadows = clamp(params.shadows, -1.0, 1.0);
    let luma = 0.2126 * r + 0.7152 * g + 0.0722 * b;
    var target_luma = luma;

    if (abs(shadows) > 0.001) {
        let w = 1.0 - smoothstep_f(0.0, 0.5, target_luma);
        if (shadows >= 0.0) {
            target_luma = target_luma + (1.0 - target_luma) * shadows * w;
        } else {
            target_luma = target_luma * (1.0 + shadows * w);
        }
    }
    if (abs(highlights) > 0.001) {
        let w = smoothstep_f(0.5, 1.0, target_luma);
        if (highlights >= 0.0) {
            target_luma = target_luma + (1.0 - target_luma) * highlights * w;
        } else {
            target_luma = target_luma * (1.0 + highlights * w);
        }
    }
    let scale = select(1.0, target_luma / luma, luma > 1e-5);
    r = clamp(r * scale, 0.0, 1.0);
    g = clamp(g * scale, 0.0, 1.0);
    b = clamp(b * scale, 0.0, 1.0);

    let temp = clamp(params.temperature, -1.0, 1.0);
    if (temp > 0.0) {
        r = r + (1.0 - r) * temp * 0.25;
        b = b * (1.0 - temp * 0.25);
    } else if (temp < 0.0) {
        let cool = -temp;
        b = b + (1.0 - b) * cool * 0.25;
        r = r * (1.0 - cool * 0.25);
    }
    r = clamp(r, 0.0, 1.0);
    g = clamp(g, 0.0, 1.0);
    b = clamp(b, 0.0, 1.0);

    let sat_adjust = clamp(params.saturation, -1.0, 1.0);
    let hue_shift = params.hue_shift / 360.0;
    var hsl = rgb_to_hsl(vec3<f32>(r, g, b));
    hsl.x = wrap_unit(hsl.x + hue_shift);
    hsl.y = clamp(hsl.y * (1.0 + sat_adjust), 0.0, 1.0);

    hsl = apply_band(hsl, params.sel_hue_0, params.sel_sat_0, params.sel_light_0, 0.0);
    hsl = apply_band(hsl, params.sel_hue_1, params.sel_sat_1, params.sel_light_1, 30.0);
    hsl = apply_band(hsl, params.sel_hue_2, params.sel_sat_2, params.sel_light_2, 60.0);
    hsl = apply_band(hsl, params.sel_hue_3, params.sel_sat_3, params.sel_light_3, 120.0);
    hsl = apply_band(hsl, params.sel_hue_4, params.sel_sat_4, params.sel_light_4, 180.0);
    hsl = apply_band(hsl, params.sel_hue_5, params.sel_sat_5, params.sel_light_5, 240.0);
    hsl = apply_band(hsl, params.sel_hue_6, params.sel_sat_6, params.sel_light_6, 285.0);
    hsl = apply_band(hsl, params.sel_hue_7, params.sel_sat_7, params.sel_light_7, 330.0);

    var out_rgb = hsl_to_rgb(hsl);

    if (params.grad_enabled > 0.5) {
        let h_denom = max(params.height - 1.0, 1.0);
        let y_norm = f32(gid.y) / h_denom;
        var weight = 0.0;
        if (y_norm <= params.grad_top) {
            weight = 1.0;
        } else if (y_norm >= params.grad_bottom) {
            weight = 0.0;
        } else {
            weight = (params.grad_bottom - y_norm) / (params.grad_bottom - params.grad_top);
        }
        if (weight > 0.0) {
            let gain = exp2(params.grad_exposure * weight);
            out_rgb = clamp(out_rgb * vec3<f32>(gain, gain, gain), vec3<f32>(0.0), vec3<f32>(1.0));
        }
    }

    dst_pixels[gid.y * width + gid.x] = pack4x8unorm(vec4<f32>(out_rgb, px.a));
}
`

// blurHShaderSrc is the horizontal half of the separable Gaussian
// (sigma 1.5, radius 5) with edge clamping.
const blurHShaderSrc = `
struct BlurParams {
    width: f32,
    height: f32,
    sharpness: f32,
    _pad: f32,
};

@group(0) @binding(0)
var<storage, read> src_pixels: array<u32>;
@group(0) @binding(1)
var<storage, read_write> dst_pixels: array<u32>;
@group(0) @binding(2)
var<uniform> params: BlurParams;

fn sample_h(cx: i32, y: i32, offset: i32, w: i32) -> vec4<f32> {
    let sx = clamp(cx + offset, 0, w - 1);
    return unpack4x8unorm(src_pixels[u32(y * w + sx)]);
}

@compute @workgroup_size(16, 16, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = i32(params.width + 0.5);
    let h = i32(params.height + 0.5);
    if (i32(gid.x) >= w || i32(gid.y) >= h) {
        return;
    }

    let cx = i32(gid.x);
    let y = i32(gid.y);
    let acc = sample_h(cx, y, -5, w) * 0.0010284
            + sample_h(cx, y, -4, w) * 0.0075988
            + sample_h(cx, y, -3, w) * 0.0360008
            + sample_h(cx, y, -2, w) * 0.1093607
            + sample_h(cx, y, -1, w) * 0.2130055
            + sample_h(cx, y,  0, w) * 0.2660117
            + sample_h(cx, y,  1, w) * 0.2130055
            + sample_h(cx, y,  2, w) * 0.1093607
            + sample_h(cx, y,  3, w) * 0.0360008
            + sample_h(cx, y,  4, w) * 0.0075988
            + sample_h(cx, y,  5, w) * 0.0010284;
    dst_pixels[u32(y * w + cx)] = pack4x8unorm(acc);
}
`

// blurVUSMShaderSrc finishes the blur vertically and blends the unsharp
// mask in the same pass: sharp = orig + amount * (orig - blurred).
const blurVUSMShaderSrc = `
struct BlurParams {
    width: f32,
    height: f32,
    sharpness: f32,
    _pad: f32,
};

@group(0) @binding(0)
var<storage, read> blur_h_pixels: array<u32>;
@group(0) @binding(1)
var<storage, read> orig_pixels: array<u32>;
@group(0) @binding(2)
var<storage, read_write> dst_pixels: array<u32>;
@group(0) @binding(3)
var<uniform> params: BlurParams;

fn sample_v(x: i32, cy: i32, offset: i32, w: i32, h: i32) -> vec3<f32> {
    let sy = clamp(cy + offset, 0, h - 1);
    return unpack4x8unorm(blur_h_pixels[u32(sy * w + x)]).rgb;
}

@compute @workgroup_size(16, 16, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = i32(params.width + 0.5);
    let h = i32(params.height + 0.5);
    if (i32(gid.x) >= w || i32(gid.y) >= h) {
        return;
    }

    let x = i32(gid.x);
    let cy = i32(gid.y);
    let blurred = sample_v(x, cy, -5, w, h) * 0.0010284
                + sample_v(x, cy, -4, w, h) * 0.0075988
                + sample_v(x, cy, -3, w, h) * 0.0360008
                + sample_v(x, cy, -2, w, h) * 0.1093607
                + sample_v(x, cy, -1, w, h) * 0.2130055
                + sample_v(x, cy,  0, w, h) * 0.2660117
                + sample_v(x, cy,  1, w, h) * 0.2130055
                + sample_v(x, cy,  2, w, h) * 0.1093607
                + sample_v(x, cy,  3, w, h) * 0.0360008
                + sample_v(x, cy,  4, w, h) * 0.0075988
                + sample_v(x, cy,  5, w, h) * 0.0010284;

    let idx = u32(cy * w + x);
    let orig = unpack4x8unorm(orig_pixels[idx]);
    let sharp = clamp(orig.rgb + params.sharpness * (orig.rgb - blurred), vec3<f32>(0.0), vec3<f32>(1.0));
    dst_pixels[idx] = pack4x8unorm(vec4<f32>(sharp, orig.a));
}
`
