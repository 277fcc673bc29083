package model

import (
	"fmt"
	"image"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Server owns the ONNX session for the waste classifier. It is built once at
// startup and only read afterwards; the bound I/O tensors are guarded by mu.
type Server struct {
	Metadata Metadata

	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewServer loads the metadata sidecar and the ONNX model. runtimeLib, when
// non-empty, points at the onnxruntime shared library.
func NewServer(modelPath, metadataPath, runtimeLib string) (*Server, error) {
	metadata, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	if runtimeLib != "" {
		ort.SetSharedLibraryPath(runtimeLib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	s := &Server{Metadata: *metadata}
	if err := s.open(modelPath); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) open(modelPath string) error {
	var err error
	s.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(s.Metadata.InputShape...))
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	s.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(s.Metadata.OutputShape...))
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	s.session, err = ort.NewAdvancedSession(modelPath,
		[]string{s.Metadata.InputName}, []string{s.Metadata.OutputName},
		[]ort.ArbitraryTensor{s.inputTensor}, []ort.ArbitraryTensor{s.outputTensor},
		nil)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return nil
}

// Labels returns the fixed label vocabulary.
func (s *Server) Labels() []string {
	return s.Metadata.Classes
}

// Classify preprocesses img and runs it through the model.
func (s *Server) Classify(img image.Image) (*Prediction, error) {
	return s.Predict(Preprocess(img, &s.Metadata))
}

// Predict runs one forward pass over already preprocessed input.
func (s *Server) Predict(inputData []float32) (*Prediction, error) {
	if want := len(s.inputTensor.GetData()); len(inputData) != want {
		return nil, fmt.Errorf("expected %d input values, got %d", want, len(inputData))
	}

	output := make([]float32, len(s.Metadata.Classes))

	s.mu.Lock()
	copy(s.inputTensor.GetData(), inputData)
	err := s.session.Run()
	if err == nil {
		copy(output, s.outputTensor.GetData())
	}
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return NewPrediction(s.Metadata.Classes, output, s.Metadata.Logits)
}

// Close releases the session, its tensors and the ONNX environment.
func (s *Server) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	ort.DestroyEnvironment()
}
