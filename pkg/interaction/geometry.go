package interaction

import "github.com/soulframe/soulframe/pkg/gallery"

// PointInPolygon tests a point against a polygon with the ray-casting
// algorithm. All coordinates are normalized 0.0-1.0. Polygons with fewer
// than 3 vertices never contain anything.
func PointInPolygon(px, py float64, polygon []gallery.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := polygon[i].X, polygon[i].Y
		xj, yj := polygon[j].X, polygon[j].Y
		if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
