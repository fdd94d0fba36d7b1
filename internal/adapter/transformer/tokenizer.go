package transformer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultMaxLength   = 512
	maxCharsPerWord    = 100
	wordPieceSubPrefix = "##"
)

type specialTokens struct {
	Unk string
	CLS string
	SEP string
}

// WordPiece is a BERT-style tokenizer: basic cleanup and splitting, then greedy
// longest-match-first subword lookup.
type WordPiece struct {
	vocab     map[string]int
	lowerCase bool
	maxLength int
	special   specialTokens
	unkID     int
	clsID     int
	sepID     int
}

type tokenizerConfig struct {
	DoLowerCase    *bool    `json:"do_lower_case"`
	ModelMaxLength *float64 `json:"model_max_length"`
}

type tokenizerJSON struct {
	Model *struct {
		Type string `json:"type"`
	} `json:"model"`
}

// loadWordPiece builds the tokenizer from the four tokenizer artifacts in dir.
func loadWordPiece(dir string) (*WordPiece, error) {
	if err := checkTokenizerJSON(filepath.Join(dir, "tokenizer.json")); err != nil {
		return nil, err
	}

	var cfg tokenizerConfig
	if err := readJSON(filepath.Join(dir, "tokenizer_config.json"), &cfg); err != nil {
		return nil, err
	}

	special, err := readSpecialTokens(filepath.Join(dir, "special_tokens_map.json"))
	if err != nil {
		return nil, err
	}

	vocab, err := readVocab(filepath.Join(dir, "vocab.txt"))
	if err != nil {
		return nil, err
	}

	w := &WordPiece{
		vocab:     vocab,
		lowerCase: true,
		maxLength: defaultMaxLength,
		special:   special,
	}
	if cfg.DoLowerCase != nil {
		w.lowerCase = *cfg.DoLowerCase
	}
	if cfg.ModelMaxLength != nil && *cfg.ModelMaxLength >= 2 && *cfg.ModelMaxLength <= 1e6 {
		w.maxLength = int(*cfg.ModelMaxLength)
	}

	for _, tok := range []struct {
		name string
		dst  *int
	}{{special.Unk, &w.unkID}, {special.CLS, &w.clsID}, {special.SEP, &w.sepID}} {
		id, ok := vocab[tok.name]
		if !ok {
			return nil, fmt.Errorf("special token %q missing from vocabulary in %s", tok.name, dir)
		}
		*tok.dst = id
	}

	return w, nil
}

func checkTokenizerJSON(path string) error {
	var tj tokenizerJSON
	if err := readJSON(path, &tj); err != nil {
		return err
	}
	if tj.Model != nil && tj.Model.Type != "" && tj.Model.Type != "WordPiece" {
		return fmt.Errorf("unsupported tokenizer model %q in %s", tj.Model.Type, path)
	}
	return nil
}

func readSpecialTokens(path string) (specialTokens, error) {
	var raw map[string]json.RawMessage
	if err := readJSON(path, &raw); err != nil {
		return specialTokens{}, err
	}

	tokens := specialTokens{Unk: "[UNK]", CLS: "[CLS]", SEP: "[SEP]"}
	for key, dst := range map[string]*string{
		"unk_token": &tokens.Unk,
		"cls_token": &tokens.CLS,
		"sep_token": &tokens.SEP,
	} {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		content, err := tokenContent(msg)
		if err != nil {
			return specialTokens{}, fmt.Errorf("%s: %s: %w", path, key, err)
		}
		*dst = content
	}
	return tokens, nil
}

// tokenContent accepts both "[UNK]" and {"content": "[UNK]", ...}.
func tokenContent(msg json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(msg, &obj); err != nil {
		return "", err
	}
	if obj.Content == "" {
		return "", errors.New("empty token content")
	}
	return obj.Content, nil
}

func readVocab(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for id := 0; scanner.Scan(); id++ {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocabulary %s is empty", path)
	}
	return vocab, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// VocabSize is the highest token id plus one.
func (w *WordPiece) VocabSize() int {
	size := 0
	for _, id := range w.vocab {
		size = max(size, id+1)
	}
	return size
}

// Encode returns [CLS] tokens [SEP] ids, truncated to the model's maximum length.
func (w *WordPiece) Encode(text string) []int {
	tokens := w.Tokenize(text)
	if limit := w.maxLength - 2; len(tokens) > limit {
		tokens = tokens[:limit]
	}

	ids := make([]int, 0, len(tokens)+2)
	ids = append(ids, w.clsID)
	for _, tok := range tokens {
		id, ok := w.vocab[tok]
		if !ok {
			id = w.unkID
		}
		ids = append(ids, id)
	}
	return append(ids, w.sepID)
}

// Tokenize splits text into WordPiece tokens.
func (w *WordPiece) Tokenize(text string) []string {
	var out []string
	for _, word := range w.basicTokenize(text) {
		out = append(out, w.wordPiece(word)...)
	}
	return out
}

func (w *WordPiece) basicTokenize(text string) []string {
	var sb strings.Builder
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar:
			continue
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		case unicode.IsControl(r):
			continue
		case isCJK(r):
			sb.WriteRune(' ')
			sb.WriteRune(r)
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}

	var words []string
	for _, tok := range strings.Fields(sb.String()) {
		if w.lowerCase {
			tok = stripAccents(strings.ToLower(tok))
		}
		words = append(words, splitPunctuation(tok)...)
	}
	return words
}

func (w *WordPiece) wordPiece(word string) []string {
	chars := []rune(word)
	if len(chars) > maxCharsPerWord {
		return []string{w.special.Unk}
	}

	var pieces []string
	for start := 0; start < len(chars); {
		end := len(chars)
		var match string
		for ; end > start; end-- {
			candidate := string(chars[start:end])
			if start > 0 {
				candidate = wordPieceSubPrefix + candidate
			}
			if _, ok := w.vocab[candidate]; ok {
				match = candidate
				break
			}
		}
		if match == "" {
			return []string{w.special.Unk}
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func splitPunctuation(s string) []string {
	var out []string
	var cur []rune
	for _, r := range s {
		if isPunctuation(r) {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			out = append(out, string(r))
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0xF900 && r <= 0xFAFF)
}
