package transformer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
)

const maxHeaderSize = 100 << 20

type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

func (t tensorInfo) numel() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// safetensorsFile gives random access to the tensors of one safetensors file.
type safetensorsFile struct {
	f       *os.File
	dataOff int64
	dataLen int64
	tensors map[string]tensorInfo
}

func openSafetensors(path string) (*safetensorsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}

	st, err := readSafetensorsHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

func readSafetensorsHeader(f *os.File) (*safetensorsFile, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])
	if headerLen == 0 || headerLen > maxHeaderSize || int64(headerLen)+8 > info.Size() {
		return nil, fmt.Errorf("invalid safetensors header length %d", headerLen)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	st := &safetensorsFile{
		f:       f,
		dataOff: 8 + int64(headerLen),
		dataLen: info.Size() - 8 - int64(headerLen),
		tensors: make(map[string]tensorInfo, len(raw)),
	}
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}
		var ti tensorInfo
		if err := json.Unmarshal(msg, &ti); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		if err := st.validate(name, ti); err != nil {
			return nil, err
		}
		st.tensors[name] = ti
	}
	if len(st.tensors) == 0 {
		return nil, errors.New("safetensors file contains no tensors")
	}
	return st, nil
}

func (s *safetensorsFile) validate(name string, ti tensorInfo) error {
	size, ok := dtypeSize(ti.DType)
	if !ok {
		return fmt.Errorf("tensor %s: unsupported dtype %s", name, ti.DType)
	}
	for _, d := range ti.Shape {
		if d < 0 {
			return fmt.Errorf("tensor %s: negative dimension in shape %v", name, ti.Shape)
		}
	}
	begin, end := ti.DataOffsets[0], ti.DataOffsets[1]
	if begin < 0 || end < begin || end > s.dataLen {
		return fmt.Errorf("tensor %s: data offsets [%d,%d] outside buffer of %d bytes", name, begin, end, s.dataLen)
	}
	if want := int64(ti.numel()) * int64(size); end-begin != want {
		return fmt.Errorf("tensor %s: %d bytes for shape %v, want %d", name, end-begin, ti.Shape, want)
	}
	return nil
}

func (s *safetensorsFile) Close() error {
	return s.f.Close()
}

// names returns tensor names in sorted order.
func (s *safetensorsFile) names() []string {
	out := make([]string, 0, len(s.tensors))
	for name := range s.tensors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// findSuffix returns the shortest tensor name equal to suffix or ending in "."+suffix.
func (s *safetensorsFile) findSuffix(suffix string) (string, bool) {
	var best string
	for _, name := range s.names() {
		match := name == suffix || strings.HasSuffix(name, "."+suffix)
		if match && (best == "" || len(name) < len(best)) {
			best = name
		}
	}
	return best, best != ""
}

// float32s decodes a tensor to float32 values along with its shape.
func (s *safetensorsFile) float32s(name string) ([]float32, []int, error) {
	ti, ok := s.tensors[name]
	if !ok {
		return nil, nil, fmt.Errorf("tensor %s not found", name)
	}

	buf := make([]byte, ti.DataOffsets[1]-ti.DataOffsets[0])
	if _, err := s.f.ReadAt(buf, s.dataOff+ti.DataOffsets[0]); err != nil {
		return nil, nil, fmt.Errorf("read tensor %s: %w", name, err)
	}

	n := ti.numel()
	out := make([]float32, n)
	switch ti.DType {
	case "F32":
		for i := range n {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
	case "F16":
		for i := range n {
			out[i] = float16ToFloat32(binary.LittleEndian.Uint16(buf[i*2:]))
		}
	case "BF16":
		for i := range n {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(buf[i*2:])) << 16)
		}
	}
	return out, ti.Shape, nil
}

func dtypeSize(dtype string) (int, bool) {
	switch dtype {
	case "F32":
		return 4, true
	case "F16", "BF16":
		return 2, true
	default:
		return 0, false
	}
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | mant<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
	}
}
