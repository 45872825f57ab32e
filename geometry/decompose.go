package geometry

import (
	"sort"

	"github.com/AdityaSkhorne/SU2/utils"
)

// Decomposition is one rank's share of a global mesh: a local MeshGraph
// whose owned points map to a contiguous global range, the halo points
// mirrored from neighboring ranks, and the matched send/receive point lists
// that drive halo exchange. SendPoints[m] on this rank and RecvPoints[m'] on
// the peer list the same points in the same (global) order, which is what
// lets the receiver scatter a packed message by position.
type Decomposition struct {
	Rank, NumRanks int
	Mesh           *Graph
	GlobalIndex    []int // local point -> global point
	Neighbors      []int // neighbor ranks, ascending
	SendPoints     [][]int
	RecvPoints     [][]int
}

// Decompose splits a global mesh into np contiguous-ownership partitions.
// Partitioning quality is out of scope here; contiguous index ranges via
// PartitionMap match how the demo meshes are numbered.
func Decompose(global *Graph, np int) []*Decomposition {
	var (
		pm  = utils.NewPartitionMap(np, global.NumOwnedPoints())
		out = make([]*Decomposition, np)
	)
	for rank := 0; rank < np; rank++ {
		out[rank] = decomposeRank(global, pm, rank)
	}
	return out
}

func decomposeRank(global *Graph, pm *utils.PartitionMap, rank int) *Decomposition {
	var (
		kMin, kMax = pm.GetBucketRange(rank)
		nOwned     = kMax - kMin
	)

	// Halo points: global neighbors of the owned range lying outside it,
	// sorted ascending so both sides of an exchange agree on ordering.
	haloSet := make(map[int]bool)
	for gp := kMin; gp < kMax; gp++ {
		for _, gq := range global.Neighbors(gp) {
			if gq < kMin || gq >= kMax {
				haloSet[gq] = true
			}
		}
	}
	halo := make([]int, 0, len(haloSet))
	for gp := range haloSet {
		halo = append(halo, gp)
	}
	sort.Ints(halo)

	var (
		nPoint  = nOwned + len(halo)
		local   = make(map[int]int, nPoint)
		globIdx = make([]int, nPoint)
	)
	for gp := kMin; gp < kMax; gp++ {
		local[gp] = gp - kMin
		globIdx[gp-kMin] = gp
	}
	for k, gp := range halo {
		local[gp] = nOwned + k
		globIdx[nOwned+k] = gp
	}

	mesh := NewGraph(nPoint, nOwned)
	for lp := 0; lp < nPoint; lp++ {
		gp := globIdx[lp]
		mesh.vol[lp] = global.Volume(gp)
		for _, gq := range global.Neighbors(gp) {
			lq, present := local[gq]
			if !present || lq < lp {
				continue // edges added once, from the lower local index
			}
			mesh.Connect(lp, lq, global.FaceArea(gp, gq))
		}
	}
	for _, m := range global.Markers() {
		lm := Marker{Name: m.Name, Kind: m.Kind}
		for _, gp := range m.Points {
			if gp >= kMin && gp < kMax {
				lm.Points = append(lm.Points, gp-kMin)
			}
		}
		if len(lm.Points) > 0 {
			mesh.AddMarker(lm)
		}
	}

	d := &Decomposition{
		Rank:        rank,
		NumRanks:    pm.ParallelDegree,
		Mesh:        mesh,
		GlobalIndex: globIdx,
	}

	// Receive lists: halo points grouped by owning rank. Send lists: owned
	// points that appear as halo on the peer, i.e. owned points adjacent to
	// a point of the peer's range. Both stay sorted by global index.
	recvBy := make(map[int][]int)
	for _, gp := range halo {
		owner, _, _ := pm.GetBucket(gp)
		recvBy[owner] = append(recvBy[owner], local[gp])
	}
	sendBy := make(map[int][]int)
	for gp := kMin; gp < kMax; gp++ {
		seen := make(map[int]bool)
		for _, gq := range global.Neighbors(gp) {
			if gq >= kMin && gq < kMax {
				continue
			}
			owner, _, _ := pm.GetBucket(gq)
			if !seen[owner] {
				seen[owner] = true
				sendBy[owner] = append(sendBy[owner], local[gp])
			}
		}
	}
	for r := range recvBy {
		d.Neighbors = append(d.Neighbors, r)
	}
	sort.Ints(d.Neighbors)
	for _, r := range d.Neighbors {
		d.SendPoints = append(d.SendPoints, sendBy[r])
		d.RecvPoints = append(d.RecvPoints, recvBy[r])
	}
	return d
}
