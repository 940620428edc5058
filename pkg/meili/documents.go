package meili

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
)

// DocumentsQuery pages through documents. Zero values use the server defaults.
type DocumentsQuery struct {
	Offset int      `url:"offset,omitempty"`
	Limit  int      `url:"limit,omitempty"`
	Fields []string `url:"fields,comma,omitempty"`
}

// DirectoryOptions controls directory uploads.
type DirectoryOptions struct {
	PrimaryKey string
	// DocumentType selects which files are read. Defaults to json.
	DocumentType DocumentType
	// SeparateFiles sends each file on its own instead of combining all files
	// into one document set first.
	SeparateFiles bool
}

type primaryKeyParam struct {
	PrimaryKey string `url:"primaryKey,omitempty"`
}

// writer uploads one in-memory document set and returns the tasks it enqueued.
type writer func(ctx context.Context, documents []Document) ([]TaskInfo, error)

// GetDocument fetches one document by its identifier.
func (i *Index) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var result Document
	if err := i.client.get(ctx, i.path("documents", url.PathEscape(documentID)), nil, &result); err != nil {
		return nil, fmt.Errorf("get document %s failed: %w", documentID, err)
	}
	return result, nil
}

// GetDocuments fetches a page of documents. query may be nil.
func (i *Index) GetDocuments(ctx context.Context, query *DocumentsQuery) (*DocumentsInfo, error) {
	var params any
	if query != nil {
		params = *query
	}

	var result DocumentsInfo
	if err := i.client.get(ctx, i.path("documents"), params, &result); err != nil {
		return nil, fmt.Errorf("get documents from %s failed: %w", i.UID, err)
	}
	return &result, nil
}

// AddDocuments adds documents, replacing any document with the same id.
// primaryKey is ignored by the server once the index has one.
func (i *Index) AddDocuments(ctx context.Context, documents []Document, primaryKey string) (*TaskInfo, error) {
	return i.writeDocuments(ctx, http.MethodPost, documents, primaryKey)
}

// UpdateDocuments adds documents or partially updates existing ones.
func (i *Index) UpdateDocuments(ctx context.Context, documents []Document, primaryKey string) (*TaskInfo, error) {
	return i.writeDocuments(ctx, http.MethodPut, documents, primaryKey)
}

// AddDocumentsInBatches adds documents in chunks of batchSize, one request per
// chunk, sent sequentially.
func (i *Index) AddDocumentsInBatches(ctx context.Context, documents []Document, batchSize int, primaryKey string) ([]TaskInfo, error) {
	return i.writeInBatches(ctx, http.MethodPost, documents, batchSize, primaryKey)
}

// UpdateDocumentsInBatches is the update counterpart of AddDocumentsInBatches.
func (i *Index) UpdateDocumentsInBatches(ctx context.Context, documents []Document, batchSize int, primaryKey string) ([]TaskInfo, error) {
	return i.writeInBatches(ctx, http.MethodPut, documents, batchSize, primaryKey)
}

// AddDocumentsAutoBatch adds documents in chunks whose JSON payload fits in
// maxPayloadSize bytes. A single document larger than the limit fails with
// ErrPayloadTooLarge before anything is sent.
func (i *Index) AddDocumentsAutoBatch(ctx context.Context, documents []Document, maxPayloadSize int, primaryKey string) ([]TaskInfo, error) {
	return i.writeAutoBatch(ctx, http.MethodPost, documents, maxPayloadSize, primaryKey)
}

// UpdateDocumentsAutoBatch is the update counterpart of AddDocumentsAutoBatch.
func (i *Index) UpdateDocumentsAutoBatch(ctx context.Context, documents []Document, maxPayloadSize int, primaryKey string) ([]TaskInfo, error) {
	return i.writeAutoBatch(ctx, http.MethodPut, documents, maxPayloadSize, primaryKey)
}

// AddDocumentsFromFile adds the documents of a json, ndjson or csv file.
func (i *Index) AddDocumentsFromFile(ctx context.Context, path, primaryKey string) (*TaskInfo, error) {
	documents, err := LoadDocumentsFromFile(path)
	if err != nil {
		return nil, err
	}
	return i.AddDocuments(ctx, documents, primaryKey)
}

// UpdateDocumentsFromFile updates documents from a json, ndjson or csv file.
func (i *Index) UpdateDocumentsFromFile(ctx context.Context, path, primaryKey string) (*TaskInfo, error) {
	documents, err := LoadDocumentsFromFile(path)
	if err != nil {
		return nil, err
	}
	return i.UpdateDocuments(ctx, documents, primaryKey)
}

// AddDocumentsFromFileInBatches adds the documents of a file in chunks of batchSize.
func (i *Index) AddDocumentsFromFileInBatches(ctx context.Context, path string, batchSize int, primaryKey string) ([]TaskInfo, error) {
	documents, err := LoadDocumentsFromFile(path)
	if err != nil {
		return nil, err
	}
	return i.AddDocumentsInBatches(ctx, documents, batchSize, primaryKey)
}

// UpdateDocumentsFromFileInBatches updates documents from a file in chunks of batchSize.
func (i *Index) UpdateDocumentsFromFileInBatches(ctx context.Context, path string, batchSize int, primaryKey string) ([]TaskInfo, error) {
	documents, err := LoadDocumentsFromFile(path)
	if err != nil {
		return nil, err
	}
	return i.UpdateDocumentsInBatches(ctx, documents, batchSize, primaryKey)
}

// AddDocumentsFromFileAutoBatch adds the documents of a file in payload-bounded chunks.
func (i *Index) AddDocumentsFromFileAutoBatch(ctx context.Context, path string, maxPayloadSize int, primaryKey string) ([]TaskInfo, error) {
	documents, err := LoadDocumentsFromFile(path)
	if err != nil {
		return nil, err
	}
	return i.AddDocumentsAutoBatch(ctx, documents, maxPayloadSize, primaryKey)
}

// UpdateDocumentsFromFileAutoBatch updates documents from a file in payload-bounded chunks.
func (i *Index) UpdateDocumentsFromFileAutoBatch(ctx context.Context, path string, maxPayloadSize int, primaryKey string) ([]TaskInfo, error) {
	documents, err := LoadDocumentsFromFile(path)
	if err != nil {
		return nil, err
	}
	return i.UpdateDocumentsAutoBatch(ctx, documents, maxPayloadSize, primaryKey)
}

// AddDocumentsFromDirectory adds the documents of every matching file in dir.
// Combined uploads produce one task; separate uploads one task per file.
func (i *Index) AddDocumentsFromDirectory(ctx context.Context, dir string, opts DirectoryOptions) ([]TaskInfo, error) {
	return i.writeFromDirectory(ctx, dir, opts, i.single(http.MethodPost, opts.PrimaryKey))
}

// UpdateDocumentsFromDirectory is the update counterpart of AddDocumentsFromDirectory.
func (i *Index) UpdateDocumentsFromDirectory(ctx context.Context, dir string, opts DirectoryOptions) ([]TaskInfo, error) {
	return i.writeFromDirectory(ctx, dir, opts, i.single(http.MethodPut, opts.PrimaryKey))
}

// AddDocumentsFromDirectoryInBatches adds the documents of a directory in chunks of batchSize.
func (i *Index) AddDocumentsFromDirectoryInBatches(ctx context.Context, dir string, batchSize int, opts DirectoryOptions) ([]TaskInfo, error) {
	return i.writeFromDirectory(ctx, dir, opts, func(ctx context.Context, documents []Document) ([]TaskInfo, error) {
		return i.writeInBatches(ctx, http.MethodPost, documents, batchSize, opts.PrimaryKey)
	})
}

// UpdateDocumentsFromDirectoryInBatches updates documents from a directory in chunks of batchSize.
func (i *Index) UpdateDocumentsFromDirectoryInBatches(ctx context.Context, dir string, batchSize int, opts DirectoryOptions) ([]TaskInfo, error) {
	return i.writeFromDirectory(ctx, dir, opts, func(ctx context.Context, documents []Document) ([]TaskInfo, error) {
		return i.writeInBatches(ctx, http.MethodPut, documents, batchSize, opts.PrimaryKey)
	})
}

// AddDocumentsFromDirectoryAutoBatch adds the documents of a directory in payload-bounded chunks.
func (i *Index) AddDocumentsFromDirectoryAutoBatch(ctx context.Context, dir string, maxPayloadSize int, opts DirectoryOptions) ([]TaskInfo, error) {
	return i.writeFromDirectory(ctx, dir, opts, func(ctx context.Context, documents []Document) ([]TaskInfo, error) {
		return i.writeAutoBatch(ctx, http.MethodPost, documents, maxPayloadSize, opts.PrimaryKey)
	})
}

// UpdateDocumentsFromDirectoryAutoBatch updates documents from a directory in payload-bounded chunks.
func (i *Index) UpdateDocumentsFromDirectoryAutoBatch(ctx context.Context, dir string, maxPayloadSize int, opts DirectoryOptions) ([]TaskInfo, error) {
	return i.writeFromDirectory(ctx, dir, opts, func(ctx context.Context, documents []Document) ([]TaskInfo, error) {
		return i.writeAutoBatch(ctx, http.MethodPut, documents, maxPayloadSize, opts.PrimaryKey)
	})
}

// AddDocumentsFromRawFile streams a csv or ndjson file to the server as is.
// No batching is possible in this mode.
func (i *Index) AddDocumentsFromRawFile(ctx context.Context, path, primaryKey string) (*TaskInfo, error) {
	return i.writeRawFile(ctx, http.MethodPost, path, primaryKey)
}

// UpdateDocumentsFromRawFile is the update counterpart of AddDocumentsFromRawFile.
func (i *Index) UpdateDocumentsFromRawFile(ctx context.Context, path, primaryKey string) (*TaskInfo, error) {
	return i.writeRawFile(ctx, http.MethodPut, path, primaryKey)
}

// DeleteDocument deletes one document.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.delete(ctx, i.path("documents", url.PathEscape(documentID)), &task); err != nil {
		return nil, fmt.Errorf("delete document %s failed: %w", documentID, err)
	}
	return &task, nil
}

// DeleteDocuments deletes the documents with the given identifiers.
func (i *Index) DeleteDocuments(ctx context.Context, ids []string) (*TaskInfo, error) {
	if ids == nil {
		ids = []string{}
	}

	var task TaskInfo
	if err := i.client.post(ctx, i.path("documents", "delete-batch"), nil, ids, &task); err != nil {
		return nil, fmt.Errorf("delete documents failed: %w", err)
	}
	return &task, nil
}

// DeleteAllDocuments deletes every document of the index.
func (i *Index) DeleteAllDocuments(ctx context.Context) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.delete(ctx, i.path("documents"), &task); err != nil {
		return nil, fmt.Errorf("delete all documents failed: %w", err)
	}
	return &task, nil
}

func (i *Index) writeDocuments(ctx context.Context, method string, documents []Document, primaryKey string) (*TaskInfo, error) {
	encoded, err := encodeDocuments(documents)
	if err != nil {
		return nil, err
	}
	return i.sendDocuments(ctx, method, bytes.NewReader(joinArray(encoded)), contentTypeJSON, primaryKey)
}

func (i *Index) writeInBatches(ctx context.Context, method string, documents []Document, batchSize int, primaryKey string) ([]TaskInfo, error) {
	chunks, err := Batch(documents, batchSize)
	if err != nil {
		return nil, err
	}

	tasks := make([]TaskInfo, 0, len(chunks))
	for n, chunk := range chunks {
		task, err := i.writeDocuments(ctx, method, chunk, primaryKey)
		if err != nil {
			return tasks, fmt.Errorf("batch %d of %d: %w", n+1, len(chunks), err)
		}
		tasks = append(tasks, *task)
	}

	i.client.logger.Debug().
		Str("index", i.UID).
		Int("documents", len(documents)).
		Int("batches", len(chunks)).
		Msg("MeiliSearch: documents sent in batches")
	return tasks, nil
}

func (i *Index) writeAutoBatch(ctx context.Context, method string, documents []Document, maxPayloadSize int, primaryKey string) ([]TaskInfo, error) {
	encoded, err := encodeDocuments(documents)
	if err != nil {
		return nil, err
	}

	bodies, err := payloadChunks(encoded, maxPayloadSize)
	if err != nil {
		return nil, err
	}

	tasks := make([]TaskInfo, 0, len(bodies))
	for n, body := range bodies {
		task, err := i.sendDocuments(ctx, method, bytes.NewReader(body), contentTypeJSON, primaryKey)
		if err != nil {
			return tasks, fmt.Errorf("batch %d of %d: %w", n+1, len(bodies), err)
		}
		tasks = append(tasks, *task)
	}

	i.client.logger.Debug().
		Str("index", i.UID).
		Int("documents", len(documents)).
		Int("batches", len(bodies)).
		Int("max_payload_size", maxPayloadSize).
		Msg("MeiliSearch: documents sent in auto batches")
	return tasks, nil
}

func (i *Index) single(method, primaryKey string) writer {
	return func(ctx context.Context, documents []Document) ([]TaskInfo, error) {
		task, err := i.writeDocuments(ctx, method, documents, primaryKey)
		if err != nil {
			return nil, err
		}
		return []TaskInfo{*task}, nil
	}
}

// writeFromDirectory loads the directory and hands either the combined
// documents or each file's documents, in file name order, to write.
func (i *Index) writeFromDirectory(ctx context.Context, dir string, opts DirectoryOptions, write writer) ([]TaskInfo, error) {
	docType := opts.DocumentType
	if docType == "" {
		docType = DocumentTypeJSON
	}
	if _, err := ParseDocumentType(string(docType)); err != nil {
		return nil, err
	}

	perFile, err := LoadDocumentsFromDirectory(ctx, dir, docType)
	if err != nil {
		return nil, err
	}

	if !opts.SeparateFiles {
		return write(ctx, combineDocuments(perFile))
	}

	var tasks []TaskInfo
	for _, documents := range perFile {
		fileTasks, err := write(ctx, documents)
		tasks = append(tasks, fileTasks...)
		if err != nil {
			return tasks, err
		}
	}
	return tasks, nil
}

func (i *Index) writeRawFile(ctx context.Context, method, path, primaryKey string) (*TaskInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	docType, err := documentTypeOf(path)
	if err != nil || docType == DocumentTypeJSON {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRawFileType, path)
	}

	contentType := contentTypeNDJSON
	if docType == DocumentTypeCSV {
		contentType = contentTypeCSV
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return i.sendDocuments(ctx, method, f, contentType, primaryKey)
}

func (i *Index) sendDocuments(ctx context.Context, method string, body io.Reader, contentType, primaryKey string) (*TaskInfo, error) {
	var task TaskInfo
	params := primaryKeyParam{PrimaryKey: primaryKey}
	if err := i.client.send(ctx, method, i.path("documents"), params, body, contentType, &task); err != nil {
		return nil, fmt.Errorf("send documents to %s failed: %w", i.UID, err)
	}
	return &task, nil
}
