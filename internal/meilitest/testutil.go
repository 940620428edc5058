package meilitest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Movie is the sample document used across tests.
type Movie struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Genre  string `json:"genre"`
	Poster string `json:"poster"`
}

var genres = []string{"Drama", "Comedy", "Action", "Horror", "Documentary"}

// Movies returns n movies with ids starting at first.
func Movies(first, n int) []Movie {
	movies := make([]Movie, n)
	for i := range movies {
		id := first + i
		movies[i] = Movie{
			ID:     strconv.Itoa(id),
			Title:  fmt.Sprintf("Movie %d", id),
			Genre:  genres[id%len(genres)],
			Poster: fmt.Sprintf("https://example.com/posters/%d.jpg", id),
		}
	}
	return movies
}

// MovieDocuments returns the movies as generic documents.
func MovieDocuments(first, n int) []map[string]any {
	movies := Movies(first, n)
	documents := make([]map[string]any, len(movies))
	for i, m := range movies {
		documents[i] = map[string]any{
			"id":     m.ID,
			"title":  m.Title,
			"genre":  m.Genre,
			"poster": m.Poster,
		}
	}
	return documents
}

// WriteMoviesJSON writes movies as a JSON array and returns the file path.
func WriteMoviesJSON(t testing.TB, dir, name string, movies []Movie) string {
	t.Helper()

	data, err := json.Marshal(movies)
	if err != nil {
		t.Fatalf("Failed to marshal movies: %v", err)
	}
	return writeFile(t, dir, name, data)
}

// WriteMoviesNDJSON writes one movie per line and returns the file path.
func WriteMoviesNDJSON(t testing.TB, dir, name string, movies []Movie) string {
	t.Helper()

	var data []byte
	for _, m := range movies {
		line, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("Failed to marshal movie: %v", err)
		}
		data = append(data, line...)
		data = append(data, '\n')
	}
	return writeFile(t, dir, name, data)
}

// WriteMoviesCSV writes movies with a header row and returns the file path.
func WriteMoviesCSV(t testing.TB, dir, name string, movies []Movie) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{{"id", "title", "genre", "poster"}}
	for _, m := range movies {
		rows = append(rows, []string{m.ID, m.Title, m.Genre, m.Poster})
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("Failed to write csv %s: %v", path, err)
	}
	return path
}

// WriteFile writes raw content into dir and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	return writeFile(t, dir, name, []byte(content))
}

func writeFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	return path
}
