package transformer

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/domain"
)

const (
	configFile  = "config.json"
	weightsFile = "model.safetensors"

	embeddingSuffix = "word_embeddings.weight"
)

const (
	headWeight = "classifier.weight"
	headBias   = "classifier.bias"
)

// maxListedTensors bounds the tensor names quoted in an unsupported-architecture error.
const maxListedTensors = 5

// ErrUnsupportedArchitecture marks checkpoints carrying layers this package cannot evaluate,
// such as encoder blocks or a pre-classifier projection.
var ErrUnsupportedArchitecture = errors.New("unsupported model architecture")

var _ domain.ModelLoader = (*Loader)(nil)

// Loader builds models and pipelines from a cache directory.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// LoadModel parses config.json and the required tensors from model.safetensors.
func (l *Loader) LoadModel(dir string) (domain.Model, error) {
	var cfg modelConfig
	if err := readJSON(filepath.Join(dir, configFile), &cfg); err != nil {
		return nil, err
	}
	labels, err := cfg.labels()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}

	st, err := openSafetensors(filepath.Join(dir, weightsFile))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	embName, ok := st.findSuffix(embeddingSuffix)
	if !ok {
		return nil, fmt.Errorf("%s: no *%s tensor", weightsFile, embeddingSuffix)
	}
	embeddings, embShape, err := st.float32s(embName)
	if err != nil {
		return nil, err
	}
	if len(embShape) != 2 || embShape[0] == 0 || embShape[1] == 0 {
		return nil, fmt.Errorf("%s: embedding shape %v, want [vocab, dim]", embName, embShape)
	}
	vocabSize, dim := embShape[0], embShape[1]

	weightName, biasName, ok := findHead(st)
	if !ok {
		if err := checkSupportedTensors(st, embName); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: no classification head tensors", weightsFile)
	}
	if err := checkSupportedTensors(st, embName, weightName, biasName); err != nil {
		return nil, err
	}
	weight, weightShape, err := st.float32s(weightName)
	if err != nil {
		return nil, err
	}
	bias, biasShape, err := st.float32s(biasName)
	if err != nil {
		return nil, err
	}
	if len(weightShape) != 2 || weightShape[1] != dim || weightShape[0] == 0 {
		return nil, fmt.Errorf("%s: shape %v, want [labels, %d]", weightName, weightShape, dim)
	}
	numLabels := weightShape[0]
	if len(biasShape) != 1 || biasShape[0] != numLabels {
		return nil, fmt.Errorf("%s: shape %v, want [%d]", biasName, biasShape, numLabels)
	}

	if labels == nil {
		labels = defaultLabels(numLabels)
	}
	if len(labels) != numLabels {
		return nil, fmt.Errorf("config has %d labels but classifier head has %d", len(labels), numLabels)
	}

	slog.Debug("Model weights parsed",
		"model_type", cfg.ModelType,
		"labels", labels,
		"vocab_size", vocabSize,
		"hidden_dim", dim,
	)

	return &Model{
		labels:     labels,
		vocabSize:  vocabSize,
		dim:        dim,
		embeddings: embeddings,
		weight:     weight,
		bias:       bias,
	}, nil
}

// NewPipeline loads the tokenizer and pairs it with a model from LoadModel.
func (l *Loader) NewPipeline(dir string, model domain.Model) (domain.Classifier, error) {
	m, ok := model.(*Model)
	if !ok || m == nil {
		return nil, fmt.Errorf("unsupported model type %T", model)
	}

	tok, err := loadWordPiece(dir)
	if err != nil {
		return nil, err
	}
	if tok.VocabSize() > m.vocabSize {
		return nil, fmt.Errorf("tokenizer vocabulary of %d exceeds embedding table of %d rows", tok.VocabSize(), m.vocabSize)
	}

	return &Pipeline{model: m, tokenizer: tok}, nil
}

func findHead(st *safetensorsFile) (weight, bias string, ok bool) {
	w, wok := st.findSuffix(headWeight)
	b, bok := st.findSuffix(headBias)
	return w, b, wok && bok
}

// checkSupportedTensors rejects checkpoints holding any tensor outside used, such as encoder
// blocks, pre_classifier or classifier.dense projections.
func checkSupportedTensors(st *safetensorsFile, used ...string) error {
	var extra []string
	for _, name := range st.names() {
		if !slices.Contains(used, name) {
			extra = append(extra, name)
		}
	}
	if len(extra) == 0 {
		return nil
	}

	listed := extra
	if len(listed) > maxListedTensors {
		listed = listed[:maxListedTensors]
	}
	return fmt.Errorf("%s: %w: %d unexpected tensors (%s), only pooled word embeddings with a linear classifier head are supported",
		weightsFile, ErrUnsupportedArchitecture, len(extra), strings.Join(listed, ", "))
}
