package meshio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"texdefrag/internal/mesh"
	"texdefrag/internal/texture"
)

const gltfVersion = "2.0"

func loadGLTF(path string, log *zap.Logger) (*mesh.Mesh, *texture.Object, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("meshio: open %s: %w", path, err)
	}

	r := &gltfReader{
		doc:    doc,
		cache:  texture.NewCache(filepath.Dir(path)),
		tex:    &texture.Object{},
		images: make(map[uint32]int),
	}
	var (
		positions []vec3.T
		faces     []mesh.Face
		allUV     = true
	)
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				return nil, nil, fmt.Errorf("meshio: %s mesh %d primitive %d: %w", path, mi, pi, ErrNonTriangle)
			}
			pos, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			pts, err := r.readFloats(pos, 3)
			if err != nil {
				return nil, nil, fmt.Errorf("meshio: %s positions: %w", path, err)
			}
			var uvs [][]float64
			if tc, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
				if uvs, err = r.readFloats(tc, 2); err != nil {
					return nil, nil, fmt.Errorf("meshio: %s texcoords: %w", path, err)
				}
			} else {
				allUV = false
			}
			var indices []int
			if prim.Indices != nil {
				if indices, err = r.readIndices(*prim.Indices); err != nil {
					return nil, nil, fmt.Errorf("meshio: %s indices: %w", path, err)
				}
			} else {
				indices = make([]int, len(pts))
				for i := range indices {
					indices[i] = i
				}
			}
			if len(indices)%3 != 0 {
				return nil, nil, fmt.Errorf("meshio: %s: index count %d: %w", path, len(indices), ErrNonTriangle)
			}
			tex := -1
			if prim.Material != nil {
				if tex, err = r.materialTexture(*prim.Material); err != nil {
					return nil, nil, fmt.Errorf("meshio: %s material %d: %w: %w", path, *prim.Material, ErrTextureLoad, err)
				}
			}

			base := len(positions)
			for _, p := range pts {
				positions = append(positions, vec3.T{p[0], p[1], p[2]})
			}
			for i := 0; i+2 < len(indices); i += 3 {
				f := mesh.Face{Tex: tex}
				for k := 0; k < 3; k++ {
					idx := indices[i+k]
					if idx < 0 || idx >= len(pts) {
						return nil, nil, fmt.Errorf("meshio: %s: index %d out of range", path, idx)
					}
					f.V[k] = base + idx
					if uvs != nil && idx < len(uvs) {
						// glTF texture space already has v pointing down.
						f.WT[k] = vec2.T{uvs[idx][0], uvs[idx][1]}
					}
				}
				faces = append(faces, f)
			}
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := mesh.New(name, positions, faces)
	m.LoadMask = 0
	if allUV && len(faces) > 0 {
		m.LoadMask |= mesh.MaskVertexTexCoord | mesh.MaskWedgeTexCoord
	}
	log.Debug("glTF loaded",
		zap.String("file", path),
		zap.Int("vertices", len(positions)),
		zap.Int("faces", len(faces)),
		zap.Int("textures", r.tex.Count()))
	return m, r.tex, nil
}

type gltfReader struct {
	doc    *gltf.Document
	cache  *texture.Cache
	tex    *texture.Object
	images map[uint32]int
}

// accessorBytes returns the raw bytes of an accessor and the stride between
// elements.
func (r *gltfReader) accessorBytes(idx uint32, elemSize int) (*gltf.Accessor, []byte, int, error) {
	if int(idx) >= len(r.doc.Accessors) {
		return nil, nil, 0, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := r.doc.Accessors[idx]
	if acc.BufferView == nil {
		return nil, nil, 0, fmt.Errorf("sparse or empty accessor %d", idx)
	}
	data, err := r.viewBytes(*acc.BufferView)
	if err != nil {
		return nil, nil, 0, err
	}
	stride := elemSize
	if s := int(r.doc.BufferViews[*acc.BufferView].ByteStride); s > 0 {
		stride = s
	}
	start := int(acc.ByteOffset)
	end := start + stride*(int(acc.Count)-1) + elemSize
	if acc.Count == 0 {
		end = start
	}
	if end > len(data) {
		return nil, nil, 0, fmt.Errorf("accessor %d exceeds its buffer view", idx)
	}
	return acc, data[start:end], stride, nil
}

func (r *gltfReader) viewBytes(view uint32) ([]byte, error) {
	if int(view) >= len(r.doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", view)
	}
	bv := r.doc.BufferViews[view]
	if int(bv.Buffer) >= len(r.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	buf := r.doc.Buffers[bv.Buffer].Data
	start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
	if end > len(buf) {
		return nil, fmt.Errorf("buffer view %d exceeds buffer", view)
	}
	return buf[start:end], nil
}

func componentSize(ct gltf.ComponentType) int {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	}
	return 4
}

// readFloats decodes a float accessor, or a normalized integer one, into
// vectors of n components.
func (r *gltfReader) readFloats(idx uint32, n int) ([][]float64, error) {
	if int(idx) >= len(r.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	ct := r.doc.Accessors[idx].ComponentType
	size := componentSize(ct)
	acc, data, stride, err := r.accessorBytes(idx, size*n)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, acc.Count)
	for i := range out {
		v := make([]float64, n)
		for c := 0; c < n; c++ {
			b := data[i*stride+c*size:]
			switch ct {
			case gltf.ComponentFloat:
				v[c] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			case gltf.ComponentUbyte:
				v[c] = float64(b[0]) / 255
			case gltf.ComponentUshort:
				v[c] = float64(binary.LittleEndian.Uint16(b)) / 65535
			case gltf.ComponentByte:
				v[c] = math.Max(float64(int8(b[0]))/127, -1)
			case gltf.ComponentShort:
				v[c] = math.Max(float64(int16(binary.LittleEndian.Uint16(b)))/32767, -1)
			default:
				return nil, fmt.Errorf("accessor %d: unsupported component type", idx)
			}
		}
		out[i] = v
	}
	return out, nil
}

func (r *gltfReader) readIndices(idx uint32) ([]int, error) {
	if int(idx) >= len(r.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	ct := r.doc.Accessors[idx].ComponentType
	size := componentSize(ct)
	acc, data, stride, err := r.accessorBytes(idx, size)
	if err != nil {
		return nil, err
	}
	out := make([]int, acc.Count)
	for i := range out {
		b := data[i*stride:]
		switch ct {
		case gltf.ComponentUbyte:
			out[i] = int(b[0])
		case gltf.ComponentUshort:
			out[i] = int(binary.LittleEndian.Uint16(b))
		case gltf.ComponentUint:
			out[i] = int(binary.LittleEndian.Uint32(b))
		default:
			return nil, fmt.Errorf("accessor %d: unsupported index type", idx)
		}
	}
	return out, nil
}

// materialTexture returns the texture index of a material's base color
// image, loading it on first use. Untextured materials map to -1.
func (r *gltfReader) materialTexture(mat uint32) (int, error) {
	if int(mat) >= len(r.doc.Materials) {
		return -1, fmt.Errorf("material %d out of range", mat)
	}
	pbr := r.doc.Materials[mat].PBRMetallicRoughness
	if pbr == nil || pbr.BaseColorTexture == nil {
		return -1, nil
	}
	ti := pbr.BaseColorTexture.Index
	if int(ti) >= len(r.doc.Textures) || r.doc.Textures[ti].Source == nil {
		return -1, nil
	}
	src := *r.doc.Textures[ti].Source
	if idx, ok := r.images[src]; ok {
		return idx, nil
	}
	if int(src) >= len(r.doc.Images) {
		return -1, fmt.Errorf("image %d out of range", src)
	}
	gi := r.doc.Images[src]

	var (
		img  *image.NRGBA
		name string
		err  error
	)
	switch {
	case gi.BufferView != nil:
		name = fmt.Sprintf("image_%d", src)
		var raw []byte
		if raw, err = r.viewBytes(*gi.BufferView); err == nil {
			img, err = texture.Decode(raw, name)
		}
	case strings.HasPrefix(gi.URI, "data:"):
		name = fmt.Sprintf("image_%d", src)
		comma := strings.IndexByte(gi.URI, ',')
		if comma < 0 {
			return -1, fmt.Errorf("image %d: malformed data URI", src)
		}
		var raw []byte
		if raw, err = base64.StdEncoding.DecodeString(gi.URI[comma+1:]); err == nil {
			img, err = texture.Decode(raw, name)
		}
	default:
		uri := gi.URI
		if u, perr := url.PathUnescape(uri); perr == nil {
			uri = u
		}
		img, name, err = r.cache.Resolve(uri)
	}
	if err != nil {
		return -1, err
	}
	idx := r.tex.Add(name, img)
	r.images[src] = idx
	return idx, nil
}

// gltfWriter appends chunks to the single binary buffer of a document.
type gltfWriter struct {
	doc *gltf.Document
}

func (w *gltfWriter) view(data []byte) uint32 {
	buffer := w.doc.Buffers[0]
	for len(buffer.Data)%4 != 0 {
		buffer.Data = append(buffer.Data, 0)
	}
	bv := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(len(buffer.Data)),
		ByteLength: uint32(len(data)),
	}
	buffer.Data = append(buffer.Data, data...)
	buffer.ByteLength = uint32(len(buffer.Data))
	w.doc.BufferViews = append(w.doc.BufferViews, bv)
	return uint32(len(w.doc.BufferViews) - 1)
}

func (w *gltfWriter) accessor(view uint32, ct gltf.ComponentType, at gltf.AccessorType, count int) uint32 {
	w.doc.Accessors = append(w.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: ct,
		Type:          at,
		Count:         uint32(count),
	})
	return uint32(len(w.doc.Accessors) - 1)
}

// saveGLTF writes one primitive per atlas sheet. Sheets are embedded as
// PNG images in the binary buffer.
func saveGLTF(path string, m *mesh.Mesh, images []*image.NRGBA) error {
	doc := &gltf.Document{}
	doc.Asset.Version = gltfVersion
	doc.Asset.Generator = "texdefrag"
	doc.Scene = gltf.Index(0)
	doc.Scenes = append(doc.Scenes, &gltf.Scene{Nodes: []uint32{0}})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	doc.Samplers = append(doc.Samplers, &gltf.Sampler{WrapS: gltf.WrapRepeat, WrapT: gltf.WrapRepeat})
	w := &gltfWriter{doc: doc}

	materials := make(map[int]uint32)
	for i, img := range images {
		if img == nil {
			continue
		}
		var buf bytes.Buffer
		if err := encodeImage(&buf, img, "png"); err != nil {
			return fmt.Errorf("meshio: encode sheet %d: %w", i, err)
		}
		view := w.view(buf.Bytes())
		doc.Images = append(doc.Images, &gltf.Image{MimeType: "image/png", BufferView: gltf.Index(view)})
		doc.Textures = append(doc.Textures, &gltf.Texture{
			Sampler: gltf.Index(0),
			Source:  gltf.Index(uint32(len(doc.Images) - 1)),
		})
		doc.Materials = append(doc.Materials, &gltf.Material{
			Name:        fmt.Sprintf("material_%d", i),
			DoubleSided: true,
			AlphaMode:   gltf.AlphaOpaque,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor:  &[4]float32{1, 1, 1, 1},
				BaseColorTexture: &gltf.TextureInfo{Index: uint32(len(doc.Textures) - 1)},
			},
		})
		materials[i] = uint32(len(doc.Materials) - 1)
	}

	groups := make(map[int][]int)
	var order []int
	for f := range m.Faces {
		t := m.Faces[f].Tex
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], f)
	}

	gm := &gltf.Mesh{Name: m.Name}
	for _, t := range order {
		type key struct {
			v  int
			uv [2]float32
		}
		remap := make(map[key]uint32)
		var (
			pos     []float32
			uvs     []float32
			indices []uint32
			lo      = [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
			hi      = [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
		)
		for _, f := range groups[t] {
			uv := normalizedUV(m, f, images)
			for k := 0; k < 3; k++ {
				v := m.Faces[f].V[k]
				kk := key{v, [2]float32{float32(uv[k][0]), float32(uv[k][1])}}
				idx, ok := remap[kk]
				if !ok {
					idx = uint32(len(remap))
					remap[kk] = idx
					p := m.Positions[v]
					for c := 0; c < 3; c++ {
						x := float32(p[c])
						pos = append(pos, x)
						lo[c] = float32(math.Min(float64(lo[c]), float64(x)))
						hi[c] = float32(math.Max(float64(hi[c]), float64(x)))
					}
					uvs = append(uvs, kk.uv[0], kk.uv[1])
				}
				indices = append(indices, idx)
			}
		}

		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, indices)
		ia := w.accessor(w.view(buf.Bytes()), gltf.ComponentUint, gltf.AccessorScalar, len(indices))
		buf.Reset()
		binary.Write(&buf, binary.LittleEndian, pos)
		pa := w.accessor(w.view(buf.Bytes()), gltf.ComponentFloat, gltf.AccessorVec3, len(pos)/3)
		doc.Accessors[pa].Min = lo[:]
		doc.Accessors[pa].Max = hi[:]
		buf.Reset()
		binary.Write(&buf, binary.LittleEndian, uvs)
		ta := w.accessor(w.view(buf.Bytes()), gltf.ComponentFloat, gltf.AccessorVec2, len(uvs)/2)

		prim := &gltf.Primitive{
			Attributes: make(gltf.Attribute),
			Indices:    gltf.Index(ia),
			Mode:       gltf.PrimitiveTriangles,
		}
		prim.Attributes[gltf.POSITION] = pa
		prim.Attributes[gltf.TEXCOORD_0] = ta
		if mi, ok := materials[t]; ok {
			prim.Material = gltf.Index(mi)
		}
		gm.Primitives = append(gm.Primitives, prim)
	}
	doc.Meshes = append(doc.Meshes, gm)
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: m.Name, Mesh: gltf.Index(0)})

	var err error
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		err = gltf.SaveBinary(doc, path)
	} else {
		doc.Buffers[0].URI = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".bin"
		err = gltf.Save(doc, path)
	}
	if err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}
	return nil
}
