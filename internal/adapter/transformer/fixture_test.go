package transformer

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testTensor struct {
	name  string
	dtype string
	shape []int
	data  []float32
}

// writeSafetensors encodes tensors as F32 (or F16 when dtype says so).
func writeSafetensors(t *testing.T, path string, tensors []testTensor) {
	t.Helper()

	header := make(map[string]any, len(tensors))
	var data []byte
	for _, tt := range tensors {
		dtype := tt.dtype
		if dtype == "" {
			dtype = "F32"
		}
		begin := len(data)
		for _, v := range tt.data {
			switch dtype {
			case "F16":
				data = binary.LittleEndian.AppendUint16(data, float32ToFloat16(v))
			case "BF16":
				data = binary.LittleEndian.AppendUint16(data, uint16(math.Float32bits(v)>>16))
			default:
				data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
			}
		}
		header[tt.name] = map[string]any{
			"dtype":        dtype,
			"shape":        tt.shape,
			"data_offsets": []int{begin, len(data)},
		}
	}
	header["__metadata__"] = map[string]string{"format": "pt"}

	raw, err := json.Marshal(header)
	require.NoError(t, err)

	out := binary.LittleEndian.AppendUint64(nil, uint64(len(raw)))
	out = append(out, raw...)
	out = append(out, data...)
	require.NoError(t, os.WriteFile(path, out, 0o644))
}

// float32ToFloat16 only handles values exactly representable in half precision.
func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	if f == 0 {
		return sign
	}
	exp := int((bits>>23)&0xff) - 127 + 15
	mant := uint16((bits >> 13) & 0x3ff)
	return sign | uint16(exp)<<10 | mant
}

var fixtureVocab = []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "great", "terrible", "ok", "##s", "the"}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// writeModelFixture writes a complete model directory with a two-dimensional
// embedding space: "great" points to positive, "terrible" to negative and "ok" to neutral.
func writeModelFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "config.json", `{
		"model_type": "distilbert",
		"architectures": ["DistilBertForSequenceClassification"],
		"id2label": {"0": "NEGATIVE", "1": "NEUTRAL", "2": "POSITIVE"}
	}`)
	writeFile(t, dir, "tokenizer.json", `{"model": {"type": "WordPiece"}}`)
	writeFile(t, dir, "tokenizer_config.json", `{"do_lower_case": true, "model_max_length": 512}`)
	writeFile(t, dir, "special_tokens_map.json", `{
		"unk_token": "[UNK]",
		"cls_token": {"content": "[CLS]"},
		"sep_token": "[SEP]",
		"pad_token": "[PAD]"
	}`)
	writeFile(t, dir, "vocab.txt", strings.Join(fixtureVocab, "\n")+"\n")

	embeddings := []float32{
		0, 0, // [PAD]
		0, 0, // [UNK]
		0, 0, // [CLS]
		0, 0, // [SEP]
		4, 0, // great
		-4, 0, // terrible
		0, 4, // ok
		0, 0, // ##s
		0, 0, // the
	}
	writeSafetensors(t, filepath.Join(dir, "model.safetensors"), []testTensor{
		{name: "distilbert.embeddings.word_embeddings.weight", shape: []int{len(fixtureVocab), 2}, data: embeddings},
		{name: "classifier.weight", shape: []int{3, 2}, data: []float32{-1, 0, 0, 1, 1, 0}},
		{name: "classifier.bias", shape: []int{3}, data: []float32{0, 0, 0}},
	})

	return dir
}
