package monitor

import (
	"fmt"
	"image/color"
	"net/http"

	"github.com/banshee-data/otg/internal/httputil"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// handleRunPlot renders one recorded run as a PNG, one line per axis.
// Query params:
//   - id (required)
//   - field (optional; position, velocity, acceleration or jerk)
func (ws *WebServer) handleRunPlot(w http.ResponseWriter, r *http.Request) {
	field, err := fieldParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	run, rec, ok := ws.loadRun(w, r)
	if !ok {
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s - %s", run.Name, field)
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = field

	colors := axisColors(rec.DOFs)
	for axis := 0; axis < rec.DOFs; axis++ {
		pts := make(plotter.XYs, len(rec.Samples))
		for k, sm := range rec.Samples {
			pts[k] = plotter.XY{X: sm.Time, Y: sampleField(sm, field, axis)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("build line: %v", err))
			return
		}
		line.Color = colors[axis]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("axis %d", axis), line)
	}

	// Dashed target overlay for tracked runs.
	if field == "position" && rec.Samples[0].TargetPosition != nil {
		for axis := 0; axis < rec.DOFs; axis++ {
			pts := make(plotter.XYs, len(rec.Samples))
			for k, sm := range rec.Samples {
				pts[k] = plotter.XY{X: sm.Time, Y: sm.TargetPosition[axis]}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				httputil.InternalServerError(w, fmt.Sprintf("build target line: %v", err))
				return
			}
			line.Color = colors[axis]
			line.Width = vg.Points(1)
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("target %d", axis), line)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = wt.WriteTo(w)
}

// axisColors creates a palette of distinct colors for axis lines.
func axisColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range).
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}