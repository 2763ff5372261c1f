package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Request is one call received by a FakeService, body already read.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// FakeRow is a row held by the fake service.
type FakeRow struct {
	ID       int64
	ParentID int64
	Values   []any // one per column, by column position
}

// FakeSheet is a sheet held by the fake service.
type FakeSheet struct {
	ID          int64
	Name        string
	Folder      string
	ColumnIDs   []int64
	Titles      []string
	Rows        []FakeRow
	Attachments []string
}

type fault struct {
	method string
	suffix string
	skip   int
	status int
	seen   int
}

// FakeService is an in-memory stand-in for the sheets REST API. Imports
// parse the uploaded workbook with excelize (first row is the header) and
// exports render the sheet back into a workbook whose worksheet is named
// after the sheet. Deleting a row deletes its descendants, like the real
// service.
type FakeService struct {
	Server *httptest.Server

	// ImportMessage is the message returned by imports. Empty means SUCCESS.
	ImportMessage string
	// OmitImportMessage drops the message key from import responses.
	OmitImportMessage bool

	mu       sync.Mutex
	nextID   int64
	sheets   map[int64]*FakeSheet
	requests []Request
	faults   []*fault
}

// NewFakeService starts a fake service. Close it with Server.Close.
func NewFakeService() *FakeService {
	f := &FakeService{nextID: 1000, sheets: make(map[int64]*FakeSheet)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sheets", f.listSheets)
	mux.HandleFunc("GET /sheets/{id}", f.getSheet)
	mux.HandleFunc("PUT /sheets/{id}", f.renameSheet)
	mux.HandleFunc("DELETE /sheets/{id}", f.deleteSheet)
	mux.HandleFunc("PUT /sheets/{id}/rows", f.updateRows)
	mux.HandleFunc("DELETE /sheets/{id}/rows", f.deleteRows)
	mux.HandleFunc("POST /sheets/{id}/rows/move", f.moveRows)
	mux.HandleFunc("POST /sheets/{id}/attachments", f.attach)
	mux.HandleFunc("POST /sheets/import", f.importSheet)
	mux.HandleFunc("POST /folders/{folder}/sheets/import", f.importSheet)

	f.Server = httptest.NewServer(f.record(mux))

	return f
}

// URL is the base URL to hand to the client.
func (f *FakeService) URL() string {
	return f.Server.URL
}

// Close shuts the server down.
func (f *FakeService) Close() {
	f.Server.Close()
}

// FailAfter makes requests matching method and path suffix fail with status
// once skip matching requests have succeeded.
func (f *FakeService) FailAfter(method, suffix string, skip, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faults = append(f.faults, &fault{method: method, suffix: suffix, skip: skip, status: status})
}

// AddSheet creates a sheet with one "Name" column and n top-level rows.
func (f *FakeService) AddSheet(name string, n int) *FakeSheet {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &FakeSheet{ID: f.newID(), Name: name}
	s.ColumnIDs = []int64{f.newID()}
	s.Titles = []string{"Name"}

	for i := range n {
		s.Rows = append(s.Rows, FakeRow{ID: f.newID(), Values: []any{fmt.Sprintf("row %d", i+1)}})
	}

	f.sheets[s.ID] = s

	return s
}

// Sheet returns a copy of the sheet with the given ID, or nil.
func (f *FakeService) Sheet(id int64) *FakeSheet {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sheets[id]
	if !ok {
		return nil
	}

	cp := *s
	cp.Rows = append([]FakeRow(nil), s.Rows...)

	return &cp
}

// SheetByName returns a copy of the first sheet with the given name, or nil.
func (f *FakeService) SheetByName(name string) *FakeSheet {
	f.mu.Lock()

	var id int64

	for _, sid := range f.sortedIDs() {
		if f.sheets[sid].Name == name {
			id = sid
			break
		}
	}
	f.mu.Unlock()

	if id == 0 {
		return nil
	}

	return f.Sheet(id)
}

// Requests returns recorded requests matching method whose path ends with
// suffix. An empty method matches any method.
func (f *FakeService) Requests(method, suffix string) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Request

	for _, r := range f.requests {
		if (method == "" || r.Method == method) && strings.HasSuffix(r.Path, suffix) {
			out = append(out, r)
		}
	}

	return out
}

func (f *FakeService) newID() int64 {
	f.nextID++
	return f.nextID
}

func (f *FakeService) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.sheets))
	for id := range f.sheets {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func (f *FakeService) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))

		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		})

		status := 0

		for _, ft := range f.faults {
			if ft.method != r.Method || !strings.HasSuffix(r.URL.Path, ft.suffix) {
				continue
			}

			ft.seen++
			if ft.seen > ft.skip {
				status = ft.status
				break
			}
		}
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"errorCode":%d,"message":"injected failure"}`, status)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// lookup returns the sheet named by the {id} path value. Callers hold mu.
func (f *FakeService) lookup(w http.ResponseWriter, r *http.Request) *FakeSheet {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, `{"errorCode":1006,"message":"Not Found"}`, http.StatusNotFound)
		return nil
	}

	s, ok := f.sheets[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errorCode":1006,"message":"Not Found"}`)

		return nil
	}

	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func success(result any) map[string]any {
	return map[string]any{"message": "SUCCESS", "resultCode": 0, "result": result}
}

func (f *FakeService) listSheets(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := make([]map[string]any, 0, len(f.sheets))
	for _, id := range f.sortedIDs() {
		data = append(data, map[string]any{"id": id, "name": f.sheets[id].Name})
	}

	writeJSON(w, map[string]any{"pageNumber": 1, "totalCount": len(data), "data": data})
}

func (f *FakeService) getSheet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.lookup(w, r)
	if s == nil {
		return
	}

	if r.Header.Get("Accept") == "application/vnd.ms-excel" {
		f.exportSheet(w, s)
		return
	}

	cols := make([]map[string]any, 0, len(s.ColumnIDs))
	for i, cid := range s.ColumnIDs {
		cols = append(cols, map[string]any{
			"id": cid, "index": i, "title": s.Titles[i], "type": "TEXT_NUMBER", "primary": i == 0,
		})
	}

	rows := make([]map[string]any, 0, len(s.Rows))
	for i, row := range s.Rows {
		cells := make([]map[string]any, 0, len(row.Values))
		for j, v := range row.Values {
			cells = append(cells, map[string]any{"columnId": s.ColumnIDs[j], "value": v})
		}

		m := map[string]any{"id": row.ID, "rowNumber": i + 1, "cells": cells}
		if row.ParentID != 0 {
			m["parentId"] = row.ParentID
		}

		rows = append(rows, m)
	}

	writeJSON(w, map[string]any{
		"id": s.ID, "name": s.Name, "totalRowCount": len(s.Rows), "columns": cols, "rows": rows,
	})
}

func (f *FakeService) exportSheet(w http.ResponseWriter, s *FakeSheet) {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", s.Name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	header := make([]any, len(s.Titles))
	for i, t := range s.Titles {
		header[i] = t
	}

	_ = book.SetSheetRow(s.Name, "A1", &header)

	for i, row := range s.Rows {
		values := row.Values
		_ = book.SetSheetRow(s.Name, "A"+strconv.Itoa(i+2), &values)
	}

	w.Header().Set("Content-Type", "application/vnd.ms-excel")
	_ = book.Write(w)
}

func (f *FakeService) renameSheet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.lookup(w, r)
	if s == nil {
		return
	}

	var body struct {
		Name string `json:"name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.Name = body.Name
	writeJSON(w, success(map[string]any{"id": s.ID, "name": s.Name}))
}

func (f *FakeService) deleteSheet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.lookup(w, r)
	if s == nil {
		return
	}

	delete(f.sheets, s.ID)
	writeJSON(w, map[string]any{"message": "SUCCESS", "resultCode": 0})
}

func (f *FakeService) updateRows(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.lookup(w, r)
	if s == nil {
		return
	}

	var updates []struct {
		ID       int64 `json:"id"`
		ParentID int64 `json:"parentId"`
		Cells    []struct {
			ColumnID int64 `json:"columnId"`
			Value    any   `json:"value"`
		} `json:"cells"`
	}

	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, u := range updates {
		idx := rowIndex(s, u.ID)
		if idx < 0 {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"errorCode":1006,"message":"row %d not found"}`, u.ID)

			return
		}

		if u.ParentID != 0 {
			s.Rows[idx].ParentID = u.ParentID
		}

		for _, c := range u.Cells {
			for j, cid := range s.ColumnIDs {
				if cid == c.ColumnID && j < len(s.Rows[idx].Values) {
					s.Rows[idx].Values[j] = c.Value
				}
			}
		}
	}

	writeJSON(w, success(nil))
}

func (f *FakeService) deleteRows(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.lookup(w, r)
	if s == nil {
		return
	}

	var deleted []int64

	for _, raw := range strings.Split(r.URL.Query().Get("ids"), ",") {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if rowIndex(s, id) < 0 {
			continue
		}

		deleted = append(deleted, id)
		s.Rows = removeSubtree(s.Rows, id)
	}

	writeJSON(w, success(deleted))
}

func (f *FakeService) moveRows(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	src := f.lookup(w, r)
	if src == nil {
		return
	}

	var body struct {
		RowIDs []int64 `json:"rowIds"`
		To     struct {
			SheetID int64 `json:"sheetId"`
		} `json:"to"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dst, ok := f.sheets[body.To.SheetID]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errorCode":1006,"message":"destination not found"}`)

		return
	}

	for _, id := range body.RowIDs {
		idx := rowIndex(src, id)
		if idx < 0 {
			continue
		}

		doomed := subtree(src.Rows, id)
		for _, row := range src.Rows {
			if !doomed[row.ID] {
				continue
			}

			if row.ID == id {
				row.ParentID = 0
			}

			row.Values = alignValues(src, dst, row.Values)
			dst.Rows = append(dst.Rows, row)
		}

		src.Rows = removeSubtree(src.Rows, id)
	}

	writeJSON(w, success(map[string]any{"destinationSheetId": dst.ID}))
}

func (f *FakeService) attach(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.lookup(w, r)
	if s == nil {
		return
	}

	name := "attachment"
	if _, after, ok := strings.Cut(r.Header.Get("Content-Disposition"), "filename="); ok {
		name = strings.Trim(after, `"`)
	}

	s.Attachments = append(s.Attachments, name)
	writeJSON(w, success(map[string]any{
		"id": f.newID(), "name": name, "mimeType": r.Header.Get("Content-Type"), "sizeInKb": 1,
	}))
}

func (f *FakeService) importSheet(w http.ResponseWriter, r *http.Request) {
	book, err := excelize.OpenReader(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"errorCode":1008,"message":%q}`, err.Error())

		return
	}
	defer book.Close()

	grid, err := book.GetRows(book.GetSheetName(0))
	if err != nil || len(grid) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorCode":1008,"message":"empty workbook"}`)

		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	s := &FakeSheet{ID: f.newID(), Name: r.URL.Query().Get("sheetName"), Folder: r.PathValue("folder")}
	for _, title := range grid[0] {
		s.ColumnIDs = append(s.ColumnIDs, f.newID())
		s.Titles = append(s.Titles, title)
	}

	for _, line := range grid[1:] {
		values := make([]any, len(s.ColumnIDs))
		for j := range values {
			if j < len(line) {
				values[j] = line[j]
			}
		}

		s.Rows = append(s.Rows, FakeRow{ID: f.newID(), Values: values})
	}

	f.sheets[s.ID] = s

	msg := f.ImportMessage
	if msg == "" {
		msg = "SUCCESS"
	}

	body := map[string]any{
		"resultCode": 0,
		"result":     map[string]any{"id": s.ID, "name": s.Name},
	}

	if !f.OmitImportMessage {
		body["message"] = msg
	}

	writeJSON(w, body)
}

func rowIndex(s *FakeSheet, id int64) int {
	for i := range s.Rows {
		if s.Rows[i].ID == id {
			return i
		}
	}

	return -1
}

// subtree returns the set holding id and every row descending from it.
func subtree(rows []FakeRow, id int64) map[int64]bool {
	set := map[int64]bool{id: true}

	for changed := true; changed; {
		changed = false

		for _, row := range rows {
			if !set[row.ID] && set[row.ParentID] {
				set[row.ID] = true
				changed = true
			}
		}
	}

	return set
}

// removeSubtree drops the row with id and every row descending from it.
func removeSubtree(rows []FakeRow, id int64) []FakeRow {
	doomed := subtree(rows, id)

	out := make([]FakeRow, 0, len(rows))
	for _, row := range rows {
		if !doomed[row.ID] {
			out = append(out, row)
		}
	}

	return out
}

// alignValues maps values from src's columns onto dst's columns by title.
func alignValues(src, dst *FakeSheet, values []any) []any {
	out := make([]any, len(dst.Titles))

	for i, title := range dst.Titles {
		for j, st := range src.Titles {
			if st == title && j < len(values) {
				out[i] = values[j]
			}
		}
	}

	return out
}
