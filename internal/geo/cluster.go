package geo

import (
	"fmt"
	"math"
)

// Cluster is a group of nearby markers collapsed into one map pin.
type Cluster struct {
	Center Coordinate `json:"center"`
	Count  int        `json:"count"`
}

// ClusterPoints buckets points into a grid of cell degrees (~1 km at 0.01)
// and averages each bucket. Good enough for decluttering driver markers, not
// a real spatial index.
func ClusterPoints(points []Coordinate, cell float64) []Cluster {
	if len(points) == 0 {
		return nil
	}
	if cell <= 0 {
		cell = 0.01
	}

	buckets := make(map[string][]Coordinate)
	for _, p := range points {
		gx := int(math.Round(p.Lat / cell))
		gy := int(math.Round(p.Lon / cell))
		key := fmt.Sprintf("%d:%d", gx, gy)
		buckets[key] = append(buckets[key], p)
	}

	clusters := make([]Cluster, 0, len(buckets))
	for _, list := range buckets {
		var lat, lon float64
		for _, p := range list {
			lat += p.Lat
			lon += p.Lon
		}
		n := float64(len(list))
		clusters = append(clusters, Cluster{
			Center: Coordinate{Lat: lat / n, Lon: lon / n},
			Count:  len(list),
		})
	}
	return clusters
}
