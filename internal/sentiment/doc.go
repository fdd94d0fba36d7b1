// Package sentiment maps a classifier's raw (label, confidence) pair onto the fixed
// three-class taxonomy.
//
// Classifiers emit heterogeneous vocabularies: class names, abbreviations and index tags
// (LABEL_0, "2"). ParseLabel resolves known spellings case-insensitively; anything else is
// reported as unrecognized and Normalize maps it to neutral. Only the winning class and its
// confidence are consumed, the other two classes share the remaining mass evenly.
package sentiment
