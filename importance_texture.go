package meshreduce

import (
	"github.com/playsaurus-inc/mesh-reduce/gltf"
	"github.com/playsaurus-inc/mesh-reduce/raster"
)

// Texture roles and their weights in the combined vertex score.
const (
	weightBaseColor         = 1.0
	weightNormal            = 2.0
	weightMetallicRoughness = 0.5
	weightOcclusion         = 0.3
	weightEmissive          = 0.5

	sobelWeight    = 0.6
	varianceWeight = 0.4
)

// boundTexture is one material texture binding the analyzer samples.
type boundTexture struct {
	imageIndex int
	texCoord   int
	weight     float32
}

// materialTextures lists the sampled bindings of a material in a fixed
// role order.
func materialTextures(doc *gltf.Document, materialIndex int) []boundTexture {
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return nil
	}
	mat := &doc.Materials[materialIndex]
	var out []boundTexture

	add := func(info *gltf.TextureInfo, weight float32) {
		if info == nil {
			return
		}
		if img, ok := textureImage(doc, info.Index); ok {
			out = append(out, boundTexture{imageIndex: img, texCoord: info.TexCoord, weight: weight})
		}
	}

	if pbr := mat.PBRMetallicRoughness; pbr != nil {
		add(pbr.BaseColorTexture, weightBaseColor)
		add(pbr.MetallicRoughnessTexture, weightMetallicRoughness)
	}
	if nt := mat.NormalTexture; nt != nil {
		add(&gltf.TextureInfo{Index: nt.Index, TexCoord: nt.TexCoord}, weightNormal)
	}
	if ot := mat.OcclusionTexture; ot != nil {
		add(&gltf.TextureInfo{Index: ot.Index, TexCoord: ot.TexCoord}, weightOcclusion)
	}
	add(mat.EmissiveTexture, weightEmissive)
	return out
}

func textureImage(doc *gltf.Document, textureIndex int) (int, bool) {
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return 0, false
	}
	src := doc.Textures[textureIndex].Source
	if src == nil || *src < 0 || *src >= len(doc.Images) {
		return 0, false
	}
	return *src, true
}

// textureImportanceMap builds (and caches) the dense importance grid of
// one image: Sobel edge magnitude and local 5x5 variance of the
// luminance, blended 0.6/0.4 and clamped to [0,1].
func (oc *OptimizeContext) textureImportanceMap(imageIndex int) ([]float32, int, int) {
	img := oc.decodeImage(imageIndex)
	if img == nil {
		return nil, 0, 0
	}
	if cached, ok := oc.texMapCache[imageIndex]; ok {
		return cached, img.Width, img.Height
	}

	w, h := img.Width, img.Height
	luma := make([]float32, w*h)
	for i := 0; i < w*h; i++ {
		r := float32(img.RGBA[i*4])
		g := float32(img.RGBA[i*4+1])
		b := float32(img.RGBA[i*4+2])
		luma[i] = (0.299*r + 0.587*g + 0.114*b) / 255
	}

	grid := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			edge := raster.Sobel(luma, w, h, x, y)
			variance := localVariance(luma, w, h, x, y)
			v := sobelWeight*edge + varianceWeight*variance
			if v > 1 {
				v = 1
			}
			grid[y*w+x] = v
		}
	}
	oc.texMapCache[imageIndex] = grid
	return grid, w, h
}

// localVariance computes the variance of the 5x5 neighborhood, clamped
// taps at the border, scaled into [0,1] (variance of a binary pattern
// tops out at 0.25).
func localVariance(luma []float32, w, h, x, y int) float32 {
	var sum, sumSq float32
	n := float32(0)
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			px, py := x+dx, y+dy
			if px < 0 {
				px = 0
			}
			if py < 0 {
				py = 0
			}
			if px > w-1 {
				px = w - 1
			}
			if py > h-1 {
				py = h - 1
			}
			v := luma[py*w+px]
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	v := variance * 4
	if v > 1 {
		v = 1
	}
	return v
}

// sampleBilinear reads a float grid at a UV coordinate wrapped into
// [0,1).
func sampleBilinear(grid []float32, w, h int, u, v float32) float32 {
	u = wrap01(u)
	v = wrap01(v)
	fx := u * float32(w-1)
	fy := v * float32(h-1)
	x0, y0 := int(fx), int(fy)
	x1, y1 := x0+1, y0+1
	if x1 > w-1 {
		x1 = w - 1
	}
	if y1 > h-1 {
		y1 = h - 1
	}
	tx := fx - float32(x0)
	ty := fy - float32(y0)
	top := grid[y0*w+x0]*(1-tx) + grid[y0*w+x1]*tx
	bot := grid[y1*w+x0]*(1-tx) + grid[y1*w+x1]*tx
	return top*(1-ty) + bot*ty
}

func wrap01(v float32) float32 {
	v -= float32(int(v))
	if v < 0 {
		v += 1
	}
	return v
}

// textureImportance scores each vertex of a primitive snapshot from its
// material's images. Returns nil when the primitive has no UVs or its
// material binds no decodable textures.
func (oc *OptimizeContext) textureImportance(snap *primitiveSnapshot) []float32 {
	if snap.material == nil {
		return nil
	}
	bindings := materialTextures(&oc.asset.Doc, *snap.material)
	if len(bindings) == 0 {
		return nil
	}

	scores := make([]float32, snap.vertexCount)
	var totalWeight float32
	sampled := false

	for _, b := range bindings {
		uvs := snap.texCoords(b.texCoord)
		if uvs == nil {
			continue
		}
		grid, w, h := oc.textureImportanceMap(b.imageIndex)
		if grid == nil {
			continue
		}
		sampled = true
		totalWeight += b.weight
		for v := 0; v < snap.vertexCount; v++ {
			scores[v] += b.weight * sampleBilinear(grid, w, h, uvs[v*2], uvs[v*2+1])
		}
	}
	if !sampled || totalWeight == 0 {
		return nil
	}

	var maxScore float32
	for v := range scores {
		scores[v] /= totalWeight
		if scores[v] > maxScore {
			maxScore = scores[v]
		}
	}
	if maxScore > 0 {
		for v := range scores {
			scores[v] /= maxScore
		}
	}
	return scores
}
