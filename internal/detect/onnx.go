package detect

import (
	"fmt"
	"image"
	"runtime"
	"sort"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

// Initialize loads the onnxruntime shared library and sets up its
// environment. Call once at startup before constructing ONNX detectors.
// An empty libraryPath leaves the library default in place.
func Initialize(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// Destroy tears down the onnxruntime environment at shutdown.
func Destroy() {
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

// ONNXDetector runs a YOLOv8 person detection model through onnxruntime.
// It is not safe for concurrent use; the pipeline calls it from a single
// goroutine.
type ONNXDetector struct {
	cfg     Config
	anchors int
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXDetector creates a detection session for the configured model.
// Initialize must have been called first.
func NewONNXDetector(cfg Config) (*ONNXDetector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	def := DefaultConfig()
	if cfg.InputWidth <= 0 {
		cfg.InputWidth = def.InputWidth
	}
	if cfg.InputHeight <= 0 {
		cfg.InputHeight = def.InputHeight
	}
	if cfg.NumClasses <= 0 {
		cfg.NumClasses = def.NumClasses
	}
	if cfg.ConfThreshold <= 0 {
		cfg.ConfThreshold = def.ConfThreshold
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = def.IoUThreshold
	}
	if cfg.ClassID < 0 || cfg.ClassID >= cfg.NumClasses {
		return nil, fmt.Errorf("class id %d out of range for %d classes", cfg.ClassID, cfg.NumClasses)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(runtime.NumCPU())

	anchors := anchorCount(cfg.InputWidth, cfg.InputHeight)
	inputShape := ort.NewShape(1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth))
	outputShape := ort.NewShape(1, int64(4+cfg.NumClasses), int64(anchors))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &ONNXDetector{
		cfg:     cfg,
		anchors: anchors,
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Detect runs the model over one frame and returns detections of the
// configured class in frame pixel coordinates.
func (d *ONNXDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	resized := imaging.Resize(img, d.cfg.InputWidth, d.cfg.InputHeight, imaging.Linear)
	fillInput(resized, d.input.GetData(), d.cfg.InputWidth, d.cfg.InputHeight)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	return decodePredictions(d.output.GetData(), d.cfg, d.anchors, frame.Cols(), frame.Rows())
}

// Close releases the session and its tensors.
func (d *ONNXDetector) Close() error {
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	return nil
}

// anchorCount returns the number of predictions a YOLOv8 head produces for
// the given input size (strides 8, 16 and 32).
func anchorCount(width, height int) int {
	return (width/8)*(height/8) + (width/16)*(height/16) + (width/32)*(height/32)
}

// fillInput converts an image to the CHW float32 layout the model expects,
// scaled to [0,1].
func fillInput(pic image.Image, data []float32, width, height int) {
	channelSize := width * height
	for y := 0; y < height; y++ {
		offset := y * width
		for x := 0; x < width; x++ {
			i := offset + x
			r, g, b, _ := pic.At(x, y).RGBA()
			data[i] = float32(r>>8) / 255.0
			data[channelSize+i] = float32(g>>8) / 255.0
			data[channelSize*2+i] = float32(b>>8) / 255.0
		}
	}
}

// decodePredictions turns the raw [1, 4+classes, anchors] output into
// detections. Box coordinates come out of the model in input-image pixels
// and are scaled back to the original frame.
func decodePredictions(preds []float32, cfg Config, anchors, frameWidth, frameHeight int) ([]Detection, error) {
	expected := (4 + cfg.NumClasses) * anchors
	if len(preds) != expected {
		return nil, fmt.Errorf("unexpected output length: got %d, want %d", len(preds), expected)
	}

	scaleX := float64(frameWidth) / float64(cfg.InputWidth)
	scaleY := float64(frameHeight) / float64(cfg.InputHeight)
	scoreRow := 4 + cfg.ClassID

	var dets []Detection
	for i := 0; i < anchors; i++ {
		score := float64(preds[scoreRow*anchors+i])
		if score < cfg.ConfThreshold {
			continue
		}

		cx := float64(preds[i])
		cy := float64(preds[anchors+i])
		w := float64(preds[2*anchors+i])
		h := float64(preds[3*anchors+i])

		box := clampBox(geometry.Box{
			X: (cx - w/2) * scaleX,
			Y: (cy - h/2) * scaleY,
			W: w * scaleX,
			H: h * scaleY,
		}, float64(frameWidth), float64(frameHeight))
		if box.W <= 0 || box.H <= 0 {
			continue
		}

		dets = append(dets, Detection{Box: box, ClassID: cfg.ClassID, Confidence: score})
	}

	return nonMaxSuppression(dets, cfg.IoUThreshold), nil
}

// clampBox limits a box to the frame bounds.
func clampBox(b geometry.Box, width, height float64) geometry.Box {
	x1 := max(b.X, 0)
	y1 := max(b.Y, 0)
	x2 := min(b.X+b.W, width)
	y2 := min(b.Y+b.H, height)
	return geometry.Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// nonMaxSuppression keeps the highest-confidence detection of each cluster
// of overlapping boxes. The result is sorted by descending confidence.
func nonMaxSuppression(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) < 2 {
		return dets
	}

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]Detection, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && sorted[i].Box.IoU(sorted[j].Box) >= iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
