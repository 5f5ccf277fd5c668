package objdet

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/onnx"
)

// Detection is one predicted object in image pixels.
type Detection struct {
	Box   imgutil.Box `json:"box"`
	Score float64     `json:"score"`
	Class int         `json:"class"`
	Label string      `json:"label,omitempty"`
}

// decode recognizes the output layout:
//   - mmdeploy end2end: dets [1,N,5] (x1,y1,x2,y2,score) and labels [1,N],
//   - YOLO: a single [1,4+C,N] tensor of cx,cy,w,h and class scores.
func decode(outputs []onnx.Output, scoreThr, nmsThr float64) ([]Detection, error) {
	var dets, labels *onnx.Output
	for i := range outputs {
		o := &outputs[i]
		switch {
		case o.Int64 != nil && len(o.Shape) == 2:
			labels = o
		case o.Float32 != nil && len(o.Shape) == 3 && o.Shape[2] == 5:
			dets = o
		}
	}
	if dets != nil && labels != nil {
		return decodeMMDeploy(*dets, *labels, scoreThr)
	}
	if len(outputs) >= 1 && outputs[0].Float32 != nil && len(outputs[0].Shape) == 3 && outputs[0].Shape[1] > 4 {
		return decodeYOLO(outputs[0], scoreThr, nmsThr)
	}
	shapes := make([][]int64, len(outputs))
	for i, o := range outputs {
		shapes[i] = o.Shape
	}
	return nil, fmt.Errorf("unrecognized detection output layout %v", shapes)
}

func decodeMMDeploy(dets, labels onnx.Output, scoreThr float64) ([]Detection, error) {
	n := int(dets.Shape[1])
	if len(dets.Float32) < n*5 || len(labels.Int64) < n {
		return nil, fmt.Errorf("detection outputs truncated: %d boxes, %d labels", len(dets.Float32)/5, len(labels.Int64))
	}
	var out []Detection
	for i := 0; i < n; i++ {
		row := dets.Float32[i*5 : i*5+5]
		score := float64(row[4])
		if score < scoreThr {
			continue
		}
		out = append(out, Detection{
			Box:   imgutil.NewBox(float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])),
			Score: score,
			Class: int(labels.Int64[i]),
		})
	}
	sortByScore(out)
	return out, nil
}

func decodeYOLO(o onnx.Output, scoreThr, nmsThr float64) ([]Detection, error) {
	attrs, n := int(o.Shape[1]), int(o.Shape[2])
	if len(o.Float32) < attrs*n {
		return nil, fmt.Errorf("detection output truncated: want %d values, got %d", attrs*n, len(o.Float32))
	}
	at := func(a, i int) float64 { return float64(o.Float32[a*n+i]) }

	var cands []Detection
	for i := 0; i < n; i++ {
		best, cls := 0.0, -1
		for c := 4; c < attrs; c++ {
			if s := at(c, i); s > best {
				best, cls = s, c-4
			}
		}
		if cls < 0 || best < scoreThr {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		cands = append(cands, Detection{
			Box:   imgutil.NewBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2),
			Score: best,
			Class: cls,
		})
	}
	return nms(cands, nmsThr), nil
}

// nms suppresses overlapping boxes of the same class, highest score first.
func nms(dets []Detection, iouThr float64) []Detection {
	sortByScore(dets)
	keep := make([]Detection, 0, len(dets))
	for _, d := range dets {
		suppressed := false
		for _, k := range keep {
			if k.Class == d.Class && k.Box.IoU(d.Box) > iouThr {
				suppressed = true
				break
			}
		}
		if !suppressed {
			keep = append(keep, d)
		}
	}
	return keep
}

func sortByScore(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Score > dets[j].Score })
}
