package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/andresmejia3/facecam/internal/dataset"
	"github.com/andresmejia3/facecam/internal/types"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
	"gopkg.in/yaml.v3"
)

// FaceLabelID is the LBPH class every training image is assigned to.
const FaceLabelID = 1

// FaceSize is the size a face is scaled to before prediction.
var FaceSize = image.Pt(256, 256)

// ErrNoTrainingImages is returned when a training folder holds no readable jpg.
var ErrNoTrainingImages = errors.New("no usable training images")

// Progress is satisfied by *progressbar.ProgressBar.
type Progress interface {
	Add(num int) error
}

// ModelInfo is stored as YAML next to a saved model.
type ModelInfo struct {
	Label     string    `yaml:"label"`
	Folder    string    `yaml:"folder"`
	Images    int       `yaml:"images"`
	TrainedAt time.Time `yaml:"trained_at"`
}

// LBPHModel is a trained Local Binary Patterns Histogram recognizer.
type LBPHModel struct {
	rec  *contrib.LBPHFaceRecognizer
	Info ModelInfo
}

// TrainFolder fits a new model on every jpg in folder, all as one class.
// Files that cannot be decoded are skipped.
func TrainFolder(folder, label string, progress Progress) (*LBPHModel, error) {
	files, err := dataset.ListImages(folder)
	if err != nil {
		return nil, fmt.Errorf("list training images: %w", err)
	}

	var images []gocv.Mat
	defer func() {
		for i := range images {
			images[i].Close()
		}
	}()

	for _, f := range files {
		img := LoadGray(f)
		if progress != nil {
			progress.Add(1)
		}
		if img.Empty() {
			img.Close()
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTrainingImages, folder)
	}

	labels := make([]int, len(images))
	for i := range labels {
		labels[i] = FaceLabelID
	}

	rec := contrib.NewLBPHFaceRecognizer()
	rec.Train(images, labels)

	return &LBPHModel{
		rec: rec,
		Info: ModelInfo{
			Label:     label,
			Folder:    folder,
			Images:    len(images),
			TrainedAt: time.Now().UTC(),
		},
	}, nil
}

// Predict runs the recognizer on a face region of a BGR (or gray) frame.
func (m *LBPHModel) Predict(face gocv.Mat) (types.Recognized, error) {
	if face.Empty() {
		return types.Recognized{}, errors.New("empty face region")
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(face, &small, FaceSize, 0, 0, gocv.InterpolationLinear)

	gray := small
	if small.Channels() > 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	}

	resp := m.rec.PredictExtendedResponse(gray)
	return types.Recognized{
		FaceIndex:  int(resp.Label),
		Confidence: float64(resp.Confidence),
	}, nil
}

// Label is the name the model was trained for.
func (m *LBPHModel) Label() string {
	return m.Info.Label
}

// Save writes the OpenCV model file and its YAML sidecar.
func (m *LBPHModel) Save(path string) error {
	m.rec.SaveFile(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	data, err := yaml.Marshal(m.Info)
	if err != nil {
		return err
	}
	if err := os.WriteFile(MetaPath(path), data, 0644); err != nil {
		return fmt.Errorf("save model metadata: %w", err)
	}
	return nil
}

// LoadModel restores a model written by Save. Without a sidecar the model
// is labelled defaultLabel.
func LoadModel(path, defaultLabel string) (*LBPHModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	rec := contrib.NewLBPHFaceRecognizer()
	rec.LoadFile(path)

	info := ModelInfo{Label: defaultLabel}
	data, err := os.ReadFile(MetaPath(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("parse model metadata: %w", err)
		}
		if info.Label == "" {
			info.Label = defaultLabel
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read model metadata: %w", err)
	}

	return &LBPHModel{rec: rec, Info: info}, nil
}

// MetaPath is the sidecar file that accompanies a saved model.
func MetaPath(modelPath string) string {
	return modelPath + ".meta.yaml"
}

// LoadGray reads an image file as a single channel Mat. The Mat is empty if the file is unreadable.
func LoadGray(path string) gocv.Mat {
	return gocv.IMRead(path, gocv.IMReadGrayScale)
}
