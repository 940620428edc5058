package meili

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DocumentType is a supported document file format.
type DocumentType string

const (
	DocumentTypeJSON   DocumentType = "json"
	DocumentTypeNDJSON DocumentType = "ndjson"
	DocumentTypeCSV    DocumentType = "csv"
)

// maxConcurrentLoads bounds the number of files decoded at once when reading a directory.
const maxConcurrentLoads = 4

// ParseDocumentType validates a document type name such as "json".
func ParseDocumentType(name string) (DocumentType, error) {
	switch t := DocumentType(strings.TrimPrefix(strings.ToLower(name), ".")); t {
	case DocumentTypeJSON, DocumentTypeNDJSON, DocumentTypeCSV:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, name)
	}
}

func documentTypeOf(path string) (DocumentType, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidFileType, path)
	}
	t, err := ParseDocumentType(ext)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidFileType, path)
	}
	return t, nil
}

// LoadDocumentsFromFile reads documents from a json, ndjson or csv file.
// A json file must contain a top-level array.
func LoadDocumentsFromFile(path string) ([]Document, error) {
	docType, err := documentTypeOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var documents []Document
	switch docType {
	case DocumentTypeCSV:
		documents, err = decodeCSV(f)
	case DocumentTypeNDJSON:
		documents, err = decodeNDJSON(f)
	default:
		documents, err = decodeJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return documents, nil
}

func decodeJSON(r io.Reader) ([]Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: MeiliSearch requires documents to be in a list", ErrInvalidDocument)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var documents []Document
	if err := dec.Decode(&documents); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return documents, nil
}

func decodeNDJSON(r io.Reader) ([]Document, error) {
	var documents []Document

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, line, err)
		}
		documents = append(documents, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return documents, nil
}

// decodeCSV maps each row onto the header row. All values are strings.
func decodeCSV(r io.Reader) ([]Document, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	// Spreadsheet exports often start with a UTF-8 byte order mark.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	var documents []Document
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}

		doc := make(Document, len(header))
		for i, field := range header {
			doc[field] = record[i]
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

// documentFiles lists the files in dir with the given type, in name order.
func documentFiles(dir string, docType DocumentType) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	suffix := "." + string(docType)
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != suffix {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", ErrNoDocumentFiles, docType, dir)
	}
	return paths, nil
}

// LoadDocumentsFromDirectory reads every file of docType in dir. The result
// holds one slice per file, in file name order. Files are decoded concurrently.
func LoadDocumentsFromDirectory(ctx context.Context, dir string, docType DocumentType) ([][]Document, error) {
	paths, err := documentFiles(dir, docType)
	if err != nil {
		return nil, err
	}

	results := make([][]Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			documents, err := LoadDocumentsFromFile(path)
			if err != nil {
				return err
			}
			results[i] = documents
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func combineDocuments(perFile [][]Document) []Document {
	total := 0
	for _, docs := range perFile {
		total += len(docs)
	}

	combined := make([]Document, 0, total)
	for _, docs := range perFile {
		combined = append(combined, docs...)
	}
	return combined
}
