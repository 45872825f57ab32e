package geometry

import (
	"fmt"

	"github.com/AdityaSkhorne/SU2/utils"
)

// Marker is a named set of boundary vertex points with a common boundary
// condition kind. Only the kind drives behavior inside the solver core.
type Marker struct {
	Name   string
	Kind   utils.BCType
	Points []int
}

// MeshGraph is the mesh collaborator the linear solver sees: point adjacency
// with ownership, the dual-volume and face-area data driving anisotropy
// weights, boundary markers, and the sparsity patterns derived from the
// connectivity. Patterns returned must be stable for the life of the mesh.
type MeshGraph interface {
	NumPoints() int      // owned plus halo
	NumOwnedPoints() int // locally owned (domain) points
	Neighbors(i int) []int
	Owned(i int) bool
	Volume(i int) float64
	FaceArea(i, j int) float64
	Markers() []Marker
	SparsePattern(conn Connectivity, fill int) *Pattern
}

type patternKey struct {
	conn Connectivity
	fill int
}

// Graph is an adjacency-backed MeshGraph. Owned points occupy local indices
// [0,nPointDomain), halo points [nPointDomain,nPoint).
type Graph struct {
	nPoint, nPointDomain int
	adj                  [][]int
	vol                  []float64
	area                 map[[2]int]float64
	markers              []Marker
	patterns             map[patternKey]*Pattern
}

func NewGraph(nPoint, nPointDomain int) *Graph {
	if nPointDomain > nPoint || nPointDomain < 1 {
		panic(fmt.Errorf("invalid point counts: nPoint=%d nPointDomain=%d", nPoint, nPointDomain))
	}
	return &Graph{
		nPoint:       nPoint,
		nPointDomain: nPointDomain,
		adj:          make([][]int, nPoint),
		vol:          utils.ConstSlice(nPoint, 1.0),
		area:         make(map[[2]int]float64),
		patterns:     make(map[patternKey]*Pattern),
	}
}

func (g *Graph) NumPoints() int        { return g.nPoint }
func (g *Graph) NumOwnedPoints() int   { return g.nPointDomain }
func (g *Graph) Neighbors(i int) []int { return g.adj[i] }
func (g *Graph) Owned(i int) bool      { return i < g.nPointDomain }
func (g *Graph) Volume(i int) float64  { return g.vol[i] }
func (g *Graph) Markers() []Marker     { return g.markers }

func (g *Graph) SetVolume(i int, v float64) { g.vol[i] = v }

func (g *Graph) AddMarker(m Marker) { g.markers = append(g.markers, m) }

func faceKey(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

// Connect adds the undirected edge (i,j) with the given face area.
func (g *Graph) Connect(i, j int, area float64) {
	g.adj[i] = append(g.adj[i], j)
	g.adj[j] = append(g.adj[j], i)
	g.area[faceKey(i, j)] = area
}

func (g *Graph) FaceArea(i, j int) float64 {
	a, ok := g.area[faceKey(i, j)]
	if !ok {
		panic(fmt.Errorf("no face between points %d and %d", i, j))
	}
	return a
}

// SparsePattern returns the cached pattern for the requested connectivity
// and fill level, building it on first use. The base (fill 0) pattern rows
// cover owned points; columns may reach halo points.
func (g *Graph) SparsePattern(conn Connectivity, fill int) *Pattern {
	if p, ok := g.patterns[patternKey{conn, fill}]; ok {
		return p
	}
	base, ok := g.patterns[patternKey{conn, 0}]
	if !ok {
		base = NewPattern(g.nPointDomain, g.nPoint, g.Neighbors)
		g.patterns[patternKey{conn, 0}] = base
	}
	p := base.WithFill(fill)
	g.patterns[patternKey{conn, fill}] = p
	return p
}

// NewLineMesh builds a 1-D chain of n points with the given cell widths
// (uniform width 1 when widths is nil) and unit face areas. Markers of the
// given kind are placed on the first point, and on the last when both is set.
func NewLineMesh(n int, widths []float64, kind utils.BCType, both bool) *Graph {
	g := NewGraph(n, n)
	for i := 0; i < n; i++ {
		if widths != nil {
			g.vol[i] = widths[i]
		}
		if i+1 < n {
			g.Connect(i, i+1, 1.0)
		}
	}
	g.AddMarker(Marker{Name: "left", Kind: kind, Points: []int{0}})
	if both {
		g.AddMarker(Marker{Name: "right", Kind: kind, Points: []int{n - 1}})
	}
	return g
}

// NewBoxMesh builds an nx-by-ny structured mesh, point (i,j) at local index
// i*ny+j, with a geometric wall-normal stretching: the row of cells against
// the wall at j=0 has height dx/stretch^(ny-1), growing by the stretch ratio
// away from it. With stretch well above 1 the near-wall region is strongly
// anisotropic, which is what gives linelets something to find.
func NewBoxMesh(nx, ny int, stretch float64) *Graph {
	var (
		n  = nx * ny
		g  = NewGraph(n, n)
		dx = 1.0
		dy = make([]float64, ny)
	)
	h := dx
	for j := ny - 1; j >= 0; j-- {
		dy[j] = h
		h /= stretch
	}
	idx := func(i, j int) int { return i*ny + j }
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			g.vol[idx(i, j)] = dx * dy[j]
			if i+1 < nx {
				g.Connect(idx(i, j), idx(i+1, j), dy[j])
			}
			if j+1 < ny {
				g.Connect(idx(i, j), idx(i, j+1), dx)
			}
		}
	}
	wall := Marker{Name: "wall", Kind: utils.BCHeatFlux}
	far := Marker{Name: "farfield", Kind: utils.BCFarfield}
	for i := 0; i < nx; i++ {
		wall.Points = append(wall.Points, idx(i, 0))
		far.Points = append(far.Points, idx(i, ny-1))
	}
	g.AddMarker(wall)
	g.AddMarker(far)
	return g
}
