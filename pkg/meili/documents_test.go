package meili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourname/meilikit/internal/meilitest"
)

const documentsPath = "/indexes/movies/documents"

func movieDocuments(n int) []Document {
	documents := make([]Document, 0, n)
	for _, doc := range meilitest.MovieDocuments(0, n) {
		documents = append(documents, Document(doc))
	}
	return documents
}

func waitAll(t *testing.T, client *Client, tasks []TaskInfo) {
	t.Helper()
	_, err := client.WaitForTasks(context.Background(), tasks, WaitOptions{})
	require.NoError(t, err)
}

func TestAddDocuments(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	index := client.Index("movies")

	task, err := index.AddDocuments(ctx, movieDocuments(5), "id")
	require.NoError(t, err)
	assert.Equal(t, "movies", task.IndexUID)
	waitAll(t, client, []TaskInfo{*task})

	assert.Equal(t, 5, server.DocumentCount("movies"))

	requests := server.RequestsTo(http.MethodPost, documentsPath)
	require.Len(t, requests, 1)
	assert.Equal(t, "application/json", requests[0].ContentType)
	assert.Equal(t, "primaryKey=id", requests[0].Query)

	doc, err := index.GetDocument(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "Movie 3", doc["title"])
}

func TestAddDocuments_WithoutPrimaryKeyOmitsParam(t *testing.T) {
	client, server := newTestClient(t)

	_, err := client.Index("movies").AddDocuments(context.Background(), movieDocuments(1), "")
	require.NoError(t, err)
	assert.Empty(t, server.RequestsTo(http.MethodPost, documentsPath)[0].Query)
}

func TestUpdateDocuments_Merges(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	index := client.Index("movies")

	task, err := index.AddDocuments(ctx, []Document{{"id": "1", "title": "Carol", "genre": "Drama"}}, "")
	require.NoError(t, err)
	waitAll(t, client, []TaskInfo{*task})

	task, err = index.UpdateDocuments(ctx, []Document{{"id": "1", "title": "Carol (2015)"}}, "")
	require.NoError(t, err)
	waitAll(t, client, []TaskInfo{*task})

	doc, err := index.GetDocument(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Carol (2015)", doc["title"])
	assert.Equal(t, "Drama", doc["genre"])
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 1)
}

func TestAddDocumentsInBatches(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()

	tasks, err := client.Index("movies").AddDocumentsInBatches(ctx, movieDocuments(25), 10, "id")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Less(t, tasks[0].TaskUID, tasks[1].TaskUID)
	waitAll(t, client, tasks)

	requests := server.RequestsTo(http.MethodPost, documentsPath)
	require.Len(t, requests, 3)

	sizes := make([]int, len(requests))
	for i, r := range requests {
		var body []Document
		require.NoError(t, json.Unmarshal(r.Body, &body))
		sizes[i] = len(body)
		assert.Equal(t, fmt.Sprint(i*10), body[0]["id"], "chunks are sent in order")
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Equal(t, 25, server.DocumentCount("movies"))
}

func TestUpdateDocumentsInBatches(t *testing.T) {
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").UpdateDocumentsInBatches(context.Background(), movieDocuments(4), 2, "")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 2)
}

func TestAddDocumentsInBatches_InvalidSize(t *testing.T) {
	client, server := newTestClient(t)

	_, err := client.Index("movies").AddDocumentsInBatches(context.Background(), movieDocuments(3), 0, "")
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
	assert.Empty(t, server.RequestsTo(http.MethodPost, documentsPath))
}

func TestAddDocumentsAutoBatch(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()

	documents := movieDocuments(50)
	const maxPayload = 1000

	tasks, err := client.Index("movies").AddDocumentsAutoBatch(ctx, documents, maxPayload, "id")
	require.NoError(t, err)
	require.Greater(t, len(tasks), 1)
	waitAll(t, client, tasks)

	requests := server.RequestsTo(http.MethodPost, documentsPath)
	require.Len(t, requests, len(tasks))

	total := 0
	for _, r := range requests {
		assert.LessOrEqual(t, len(r.Body), maxPayload)
		var body []Document
		require.NoError(t, json.Unmarshal(r.Body, &body))
		total += len(body)
	}
	assert.Equal(t, len(documents), total)
	assert.Equal(t, len(documents), server.DocumentCount("movies"))
}

func TestAddDocumentsAutoBatch_OversizedDocumentSendsNothing(t *testing.T) {
	client, server := newTestClient(t)

	documents := movieDocuments(3)
	documents[2]["synopsis"] = strings.Repeat("z", 2000)

	tasks, err := client.Index("movies").AddDocumentsAutoBatch(context.Background(), documents, 1000, "")
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Empty(t, tasks)
	assert.Empty(t, server.RequestsTo(http.MethodPost, documentsPath))
}

func TestUpdateDocumentsAutoBatch(t *testing.T) {
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").UpdateDocumentsAutoBatch(context.Background(), movieDocuments(10), DefaultMaxPayloadSize, "")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 1)
}

func TestAddDocuments_StopsAtFirstFailedRequest(t *testing.T) {
	client, server := newTestClient(t)
	server.Close()

	tasks, err := client.Index("movies").AddDocumentsInBatches(context.Background(), movieDocuments(4), 2, "")
	require.Error(t, err)
	assert.Empty(t, tasks)
	assert.Contains(t, err.Error(), "batch 1 of 2")

	var commErr *CommunicationError
	assert.ErrorAs(t, err, &commErr)
}

func TestAddDocumentsFromFile(t *testing.T) {
	dir := t.TempDir()
	movies := meilitest.Movies(0, 6)

	files := map[string]string{
		"json":   meilitest.WriteMoviesJSON(t, dir, "movies.json", movies),
		"ndjson": meilitest.WriteMoviesNDJSON(t, dir, "movies.ndjson", movies),
		"csv":    meilitest.WriteMoviesCSV(t, dir, "movies.csv", movies),
	}

	for name, path := range files {
		t.Run(name, func(t *testing.T) {
			client, server := newTestClient(t)
			ctx := context.Background()

			task, err := client.Index("movies").AddDocumentsFromFile(ctx, path, "id")
			require.NoError(t, err)
			waitAll(t, client, []TaskInfo{*task})

			requests := server.RequestsTo(http.MethodPost, documentsPath)
			require.Len(t, requests, 1)
			assert.Equal(t, "application/json", requests[0].ContentType)
			assert.Equal(t, 6, server.DocumentCount("movies"))
		})
	}
}

func TestUpdateDocumentsFromFile(t *testing.T) {
	path := meilitest.WriteMoviesJSON(t, t.TempDir(), "movies.json", meilitest.Movies(0, 2))
	client, server := newTestClient(t)

	_, err := client.Index("movies").UpdateDocumentsFromFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 1)
}

func TestAddDocumentsFromFile_Errors(t *testing.T) {
	dir := t.TempDir()
	object := meilitest.WriteFile(t, dir, "object.json", `{"id": 1}`)
	text := meilitest.WriteFile(t, dir, "notes.txt", "hello")

	client, server := newTestClient(t)
	index := client.Index("movies")
	ctx := context.Background()

	_, err := index.AddDocumentsFromFile(ctx, object, "")
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = index.AddDocumentsFromFile(ctx, text, "")
	assert.ErrorIs(t, err, ErrInvalidFileType)

	_, err = index.AddDocumentsFromFile(ctx, dir+"/missing.json", "")
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.Empty(t, server.RequestsTo(http.MethodPost, documentsPath))
}

func TestAddDocumentsFromFileInBatches(t *testing.T) {
	path := meilitest.WriteMoviesCSV(t, t.TempDir(), "movies.csv", meilitest.Movies(0, 7))
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").AddDocumentsFromFileInBatches(context.Background(), path, 3, "id")
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
	assert.Len(t, server.RequestsTo(http.MethodPost, documentsPath), 3)
}

func TestUpdateDocumentsFromFileInBatches(t *testing.T) {
	path := meilitest.WriteMoviesNDJSON(t, t.TempDir(), "movies.ndjson", meilitest.Movies(0, 4))
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").UpdateDocumentsFromFileInBatches(context.Background(), path, 2, "id")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 2)
}

func TestAddDocumentsFromFileAutoBatch(t *testing.T) {
	path := meilitest.WriteMoviesJSON(t, t.TempDir(), "movies.json", meilitest.Movies(0, 40))
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").AddDocumentsFromFileAutoBatch(context.Background(), path, 800, "id")
	require.NoError(t, err)
	require.Greater(t, len(tasks), 1)
	waitAll(t, client, tasks)

	for _, r := range server.RequestsTo(http.MethodPost, documentsPath) {
		assert.LessOrEqual(t, len(r.Body), 800)
	}
	assert.Equal(t, 40, server.DocumentCount("movies"))
}

func TestUpdateDocumentsFromFileAutoBatch(t *testing.T) {
	path := meilitest.WriteMoviesJSON(t, t.TempDir(), "movies.json", meilitest.Movies(0, 3))
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").UpdateDocumentsFromFileAutoBatch(context.Background(), path, DefaultMaxPayloadSize, "")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 1)
}

func writeMovieDirectory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	meilitest.WriteMoviesJSON(t, dir, "a.json", meilitest.Movies(0, 3))
	meilitest.WriteMoviesJSON(t, dir, "b.json", meilitest.Movies(3, 4))
	meilitest.WriteMoviesCSV(t, dir, "c.csv", meilitest.Movies(7, 2))
	meilitest.WriteFile(t, dir, "README.md", "not a document")
	return dir
}

func TestAddDocumentsFromDirectory_Combined(t *testing.T) {
	dir := writeMovieDirectory(t)
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").AddDocumentsFromDirectory(context.Background(), dir, DirectoryOptions{PrimaryKey: "id"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	waitAll(t, client, tasks)

	requests := server.RequestsTo(http.MethodPost, documentsPath)
	require.Len(t, requests, 1)
	var body []Document
	require.NoError(t, json.Unmarshal(requests[0].Body, &body))
	require.Len(t, body, 7)
	assert.Equal(t, "0", body[0]["id"])
	assert.Equal(t, "6", body[6]["id"])
}

func TestAddDocumentsFromDirectory_SeparateFiles(t *testing.T) {
	dir := writeMovieDirectory(t)
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").AddDocumentsFromDirectory(context.Background(), dir, DirectoryOptions{
		DocumentType:  DocumentTypeJSON,
		SeparateFiles: true,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	requests := server.RequestsTo(http.MethodPost, documentsPath)
	require.Len(t, requests, 2)
	var first []Document
	require.NoError(t, json.Unmarshal(requests[0].Body, &first))
	assert.Len(t, first, 3, "files are sent in name order")
}

func TestAddDocumentsFromDirectory_CSV(t *testing.T) {
	dir := writeMovieDirectory(t)
	client, _ := newTestClient(t)

	tasks, err := client.Index("movies").AddDocumentsFromDirectory(context.Background(), dir, DirectoryOptions{DocumentType: DocumentTypeCSV})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestAddDocumentsFromDirectory_NoFiles(t *testing.T) {
	client, server := newTestClient(t)

	_, err := client.Index("movies").AddDocumentsFromDirectory(context.Background(), t.TempDir(), DirectoryOptions{})
	assert.ErrorIs(t, err, ErrNoDocumentFiles)
	assert.Empty(t, server.Requests())
}

func TestAddDocumentsFromDirectory_InvalidType(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Index("movies").AddDocumentsFromDirectory(context.Background(), t.TempDir(), DirectoryOptions{DocumentType: "xml"})
	assert.ErrorIs(t, err, ErrInvalidDocumentType)
}

func TestAddDocumentsFromDirectoryInBatches(t *testing.T) {
	dir := writeMovieDirectory(t)

	t.Run("combined", func(t *testing.T) {
		client, server := newTestClient(t)
		tasks, err := client.Index("movies").AddDocumentsFromDirectoryInBatches(context.Background(), dir, 5, DirectoryOptions{})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
		assert.Len(t, server.RequestsTo(http.MethodPost, documentsPath), 2)
	})

	t.Run("separate", func(t *testing.T) {
		client, server := newTestClient(t)
		tasks, err := client.Index("movies").AddDocumentsFromDirectoryInBatches(context.Background(), dir, 2, DirectoryOptions{SeparateFiles: true})
		require.NoError(t, err)
		// a.json: 3 docs -> 2 batches, b.json: 4 docs -> 2 batches.
		assert.Len(t, tasks, 4)
		assert.Len(t, server.RequestsTo(http.MethodPost, documentsPath), 4)
	})
}

func TestUpdateDocumentsFromDirectoryInBatches(t *testing.T) {
	dir := writeMovieDirectory(t)
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").UpdateDocumentsFromDirectoryInBatches(context.Background(), dir, 4, DirectoryOptions{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 2)
}

func TestAddDocumentsFromDirectoryAutoBatch(t *testing.T) {
	dir := writeMovieDirectory(t)
	client, server := newTestClient(t)

	tasks, err := client.Index("movies").AddDocumentsFromDirectoryAutoBatch(context.Background(), dir, 500, DirectoryOptions{SeparateFiles: true})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(tasks), 2)
	waitAll(t, client, tasks)

	for _, r := range server.RequestsTo(http.MethodPost, documentsPath) {
		assert.LessOrEqual(t, len(r.Body), 500)
	}
	assert.Equal(t, 7, server.DocumentCount("movies"))
}

func TestUpdateDocumentsFromDirectory(t *testing.T) {
	dir := writeMovieDirectory(t)
	client, server := newTestClient(t)

	_, err := client.Index("movies").UpdateDocumentsFromDirectory(context.Background(), dir, DirectoryOptions{})
	require.NoError(t, err)
	_, err = client.Index("movies").UpdateDocumentsFromDirectoryAutoBatch(context.Background(), dir, DefaultMaxPayloadSize, DirectoryOptions{})
	require.NoError(t, err)
	assert.Len(t, server.RequestsTo(http.MethodPut, documentsPath), 2)
}

func TestAddDocumentsFromRawFile(t *testing.T) {
	dir := t.TempDir()
	movies := meilitest.Movies(0, 5)
	csvPath := meilitest.WriteMoviesCSV(t, dir, "movies.csv", movies)
	ndjsonPath := meilitest.WriteMoviesNDJSON(t, dir, "movies.ndjson", movies)

	tests := []struct {
		path        string
		contentType string
	}{
		{path: csvPath, contentType: "text/csv"},
		{path: ndjsonPath, contentType: "application/x-ndjson"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			client, server := newTestClient(t)

			task, err := client.Index("movies").AddDocumentsFromRawFile(context.Background(), tt.path, "id")
			require.NoError(t, err)
			waitAll(t, client, []TaskInfo{*task})

			requests := server.RequestsTo(http.MethodPost, documentsPath)
			require.Len(t, requests, 1)
			assert.Equal(t, tt.contentType, requests[0].ContentType)
			assert.Equal(t, 5, server.DocumentCount("movies"))
		})
	}
}

func TestUpdateDocumentsFromRawFile(t *testing.T) {
	path := meilitest.WriteMoviesCSV(t, t.TempDir(), "movies.csv", meilitest.Movies(0, 2))
	client, server := newTestClient(t)

	_, err := client.Index("movies").UpdateDocumentsFromRawFile(context.Background(), path, "")
	require.NoError(t, err)
	requests := server.RequestsTo(http.MethodPut, documentsPath)
	require.Len(t, requests, 1)
	assert.Equal(t, "text/csv", requests[0].ContentType)
}

func TestAddDocumentsFromRawFile_Errors(t *testing.T) {
	dir := t.TempDir()
	jsonPath := meilitest.WriteMoviesJSON(t, dir, "movies.json", meilitest.Movies(0, 1))

	client, server := newTestClient(t)
	index := client.Index("movies")
	ctx := context.Background()

	_, err := index.AddDocumentsFromRawFile(ctx, jsonPath, "")
	assert.ErrorIs(t, err, ErrInvalidRawFileType)

	_, err = index.AddDocumentsFromRawFile(ctx, dir+"/missing.csv", "")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = index.AddDocumentsFromRawFile(ctx, dir, "")
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.Empty(t, server.Requests())
}

func TestGetDocuments(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	index := client.Index("movies")

	task, err := index.AddDocuments(ctx, movieDocuments(30), "id")
	require.NoError(t, err)
	waitAll(t, client, []TaskInfo{*task})

	page, err := index.GetDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, page.Results, 20)
	assert.EqualValues(t, 30, page.Total)

	page, err = index.GetDocuments(ctx, &DocumentsQuery{Offset: 25, Limit: 10, Fields: []string{"id", "title"}})
	require.NoError(t, err)
	require.Len(t, page.Results, 5)
	assert.Equal(t, "25", page.Results[0]["id"])
	assert.NotContains(t, page.Results[0], "genre")

	last := server.RequestsTo(http.MethodGet, documentsPath)[1]
	assert.Equal(t, "fields=id%2Ctitle&limit=10&offset=25", last.Query)
}

func TestGetDocument_NotFound(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.CreateIndex(ctx, "movies", "id")
	require.NoError(t, err)

	_, err = client.Index("movies").GetDocument(ctx, "404")
	assert.True(t, IsAPIErrorCode(err, CodeDocumentNotFound))
}

func TestDeleteDocuments(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	index := client.Index("movies")

	task, err := index.AddDocuments(ctx, movieDocuments(10), "id")
	require.NoError(t, err)
	waitAll(t, client, []TaskInfo{*task})

	one, err := index.DeleteDocument(ctx, "0")
	require.NoError(t, err)
	batch, err := index.DeleteDocuments(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)
	waitAll(t, client, []TaskInfo{*one, *batch})
	assert.Equal(t, 6, server.DocumentCount("movies"))

	requests := server.RequestsTo(http.MethodPost, documentsPath+"/delete-batch")
	require.Len(t, requests, 1)
	assert.JSONEq(t, `["1","2","3"]`, string(requests[0].Body))

	all, err := index.DeleteAllDocuments(ctx)
	require.NoError(t, err)
	waitAll(t, client, []TaskInfo{*all})
	assert.Zero(t, server.DocumentCount("movies"))
}

func TestDeleteDocuments_EmptySendsArray(t *testing.T) {
	client, server := newTestClient(t)

	_, err := client.Index("movies").DeleteDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(server.RequestsTo(http.MethodPost, documentsPath+"/delete-batch")[0].Body))
}
