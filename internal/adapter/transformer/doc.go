// Package transformer loads a sequence-classification model from a cached
// Hugging Face-style directory and runs it in pure Go.
//
// The weights come from model.safetensors; the tokenizer is BERT WordPiece driven by
// vocab.txt, tokenizer_config.json and special_tokens_map.json. Inference mean-pools the
// word embeddings of the encoded text and applies the classification head, so the model
// must ship a word_embeddings table and a classifier head of matching width.
package transformer
