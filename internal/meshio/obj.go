package meshio

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"
	"go.uber.org/zap"

	"texdefrag/internal/mesh"
	"texdefrag/internal/texture"
)

type objCorner struct {
	v, vt int // vt is -1 when absent
}

type objReader struct {
	path      string
	dir       string
	log       *zap.Logger
	positions []vec3.T
	uvs       []vec2.T
	normals   int
	faces     []mesh.Face
	missingVT bool

	materials map[string]int // material name -> texture index (-1 untextured)
	current   int
	tex       *texture.Object
	byPath    map[string]int
	cache     *texture.Cache
}

func loadOBJ(path string, log *zap.Logger) (*mesh.Mesh, *texture.Object, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("meshio: open %s: %w", path, err)
	}
	defer file.Close()

	dir := filepath.Dir(path)
	r := &objReader{
		path:      path,
		dir:       dir,
		log:       log,
		materials: make(map[string]int),
		current:   -1,
		tex:       &texture.Object{},
		byPath:    make(map[string]int),
		cache:     texture.NewCache(dir),
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := r.line(scanner.Text()); err != nil {
			return nil, nil, fmt.Errorf("meshio: %s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("meshio: read %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := mesh.New(name, r.positions, r.faces)
	m.LoadMask = 0
	if len(r.faces) > 0 && !r.missingVT {
		m.LoadMask |= mesh.MaskWedgeTexCoord
	}
	if len(r.uvs) == len(r.positions) && len(r.uvs) > 0 {
		m.LoadMask |= mesh.MaskVertexTexCoord
	}
	if r.normals > 0 {
		m.LoadMask |= mesh.MaskVertexNormal
	}
	log.Debug("OBJ loaded",
		zap.String("file", path),
		zap.Int("vertices", len(r.positions)),
		zap.Int("faces", len(r.faces)),
		zap.Int("textures", r.tex.Count()))
	return m, r.tex, nil
}

func (r *objReader) line(text string) error {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "v":
		p, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		r.positions = append(r.positions, vec3.T{p[0], p[1], p[2]})
	case "vt":
		t, err := parseFloats(fields[1:], 2)
		if err != nil {
			return err
		}
		// OBJ v points up; images are stored top row first.
		r.uvs = append(r.uvs, vec2.T{t[0], 1 - t[1]})
	case "vn":
		r.normals++
	case "f":
		return r.face(fields[1:])
	case "usemtl":
		if len(fields) < 2 {
			r.current = -1
			return nil
		}
		tex, ok := r.materials[fields[1]]
		if !ok {
			r.log.Warn("Undefined material", zap.String("material", fields[1]))
			tex = -1
		}
		r.current = tex
	case "mtllib":
		for _, lib := range fields[1:] {
			if err := r.readMTL(filepath.Join(r.dir, lib)); err != nil {
				return fmt.Errorf("material library %s: %w: %w", lib, ErrTextureLoad, err)
			}
		}
	}
	return nil
}

func (r *objReader) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face with %d corners", len(refs))
	}
	if len(refs) > 3 {
		return ErrNonTriangle
	}
	var f mesh.Face
	f.Tex = r.current
	for k, ref := range refs {
		c, err := r.corner(ref)
		if err != nil {
			return err
		}
		f.V[k] = c.v
		if c.vt >= 0 {
			f.WT[k] = r.uvs[c.vt]
		} else {
			r.missingVT = true
		}
	}
	r.faces = append(r.faces, f)
	return nil
}

func (r *objReader) corner(ref string) (objCorner, error) {
	parts := strings.Split(ref, "/")
	v, err := objIndex(parts[0], len(r.positions))
	if err != nil {
		return objCorner{}, err
	}
	c := objCorner{v: v, vt: -1}
	if len(parts) > 1 && parts[1] != "" {
		vt, err := objIndex(parts[1], len(r.uvs))
		if err != nil {
			return objCorner{}, err
		}
		c.vt = vt
	}
	return c, nil
}

// objIndex resolves a 1-based or negative (relative) OBJ index.
func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	if i < 0 {
		i = n + i
	} else {
		i--
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %s out of range", s)
	}
	return i, nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", fields[i])
		}
		out[i] = v
	}
	return out, nil
}

func (r *objReader) readMTL(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	cache := r.cache
	if d := filepath.Dir(path); d != r.dir {
		cache = texture.NewCache(d)
	}

	var name string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "newmtl":
			if len(fields) > 1 {
				name = fields[1]
				r.materials[name] = -1
			}
		case "map_Kd":
			if name == "" || len(fields) < 2 {
				continue
			}
			// Options like -s or -o precede the file name.
			texName := fields[len(fields)-1]
			img, resolved, err := cache.Resolve(texName)
			if err != nil {
				return err
			}
			idx, ok := r.byPath[resolved]
			if !ok {
				idx = r.tex.Add(resolved, img)
				r.byPath[resolved] = idx
			}
			r.materials[name] = idx
		}
	}
	return scanner.Err()
}

func saveOBJ(path string, m *mesh.Mesh, images []*image.NRGBA, opt SaveOptions) error {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mtlName := base + ".mtl"

	var b strings.Builder
	fmt.Fprintf(&b, "mtllib %s\n", mtlName)
	for _, p := range m.Positions {
		fmt.Fprintf(&b, "v %g %g %g\n", p[0], p[1], p[2])
	}

	// One vt per distinct coordinate, faces grouped by sheet.
	groups := make(map[int][]int)
	var order []int
	for f := range m.Faces {
		t := m.Faces[f].Tex
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], f)
	}
	vtIndex := make(map[[2]float64]int)
	corners := make([][3]int, len(m.Faces))
	for _, t := range order {
		for _, f := range groups[t] {
			uv := normalizedUV(m, f, images)
			for k := 0; k < 3; k++ {
				key := [2]float64{uv[k][0], 1 - uv[k][1]}
				idx, ok := vtIndex[key]
				if !ok {
					idx = len(vtIndex) + 1
					vtIndex[key] = idx
					fmt.Fprintf(&b, "vt %g %g\n", key[0], key[1])
				}
				corners[f][k] = idx
			}
		}
	}
	for _, t := range order {
		if t >= 0 {
			fmt.Fprintf(&b, "usemtl material_%d\n", t)
		}
		for _, f := range groups[t] {
			v := m.Faces[f].V
			c := corners[f]
			fmt.Fprintf(&b, "f %d/%d %d/%d %d/%d\n", v[0]+1, c[0], v[1]+1, c[1], v[2]+1, c[2])
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}

	var mtl strings.Builder
	for i, img := range images {
		fmt.Fprintf(&mtl, "newmtl material_%d\n", i)
		mtl.WriteString("Ka 1 1 1\nKd 1 1 1\nKs 0 0 0\nillum 1\n")
		if img == nil {
			continue
		}
		texName := textureName(path, i, opt.TextureFormat)
		fmt.Fprintf(&mtl, "map_Kd %s\n", texName)
		if err := writeImage(filepath.Join(dir, texName), img, opt.TextureFormat); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(dir, mtlName), []byte(mtl.String()), 0644); err != nil {
		return fmt.Errorf("meshio: write %s: %w", mtlName, err)
	}
	return nil
}
