package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/docflow/constants"
)

type fakeOCR struct {
	pages []PageResult
	err   error
	calls []string
}

func (f *fakeOCR) ExtractPages(_ context.Context, path string) ([]PageResult, error) {
	f.calls = append(f.calls, path)
	return f.pages, f.err
}

type fakeVision struct {
	result PageResult
	err    error
	calls  []string
}

func (f *fakeVision) Analyze(_ context.Context, path string) (PageResult, error) {
	f.calls = append(f.calls, path)
	return f.result, f.err
}

func TestDispatchPDF(t *testing.T) {
	ocr := &fakeOCR{pages: []PageResult{
		{PageNumber: 1, Text: "first", Method: "pdf-text"},
		{PageNumber: 2, Text: "second", Method: "pdf-text"},
		{PageNumber: 3, Text: "third", Method: "pdf-ocr"},
	}}
	d := NewDispatcher(ocr, &fakeVision{}, nil)

	pages, err := d.Dispatch(context.Background(), "/in/report.pdf", constants.PDF)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if pages[1].Text != "second" || pages[1].PageNumber != 2 {
		t.Errorf("unexpected page 2: %+v", pages[1])
	}
	if len(ocr.calls) != 1 || ocr.calls[0] != "/in/report.pdf" {
		t.Errorf("unexpected OCR calls: %v", ocr.calls)
	}
}

func TestDispatchPDFEmptyResult(t *testing.T) {
	d := NewDispatcher(&fakeOCR{pages: nil}, &fakeVision{}, nil)

	_, err := d.Dispatch(context.Background(), "/in/blank.pdf", constants.PDF)
	if err == nil {
		t.Fatal("expected error for zero extracted pages")
	}
	if reason, ok := ReasonOf(err); !ok || reason != EmptyResult {
		t.Errorf("expected reason %s, got %v (ok=%v)", EmptyResult, reason, ok)
	}
}

func TestDispatchPDFBackendFailure(t *testing.T) {
	cause := errors.New("pdftotext: exit status 1")
	d := NewDispatcher(&fakeOCR{err: cause}, &fakeVision{}, nil)

	_, err := d.Dispatch(context.Background(), "/in/corrupt.pdf", constants.PDF)
	if reason, ok := ReasonOf(err); !ok || reason != BackendFailure {
		t.Fatalf("expected reason %s, got %v (ok=%v)", BackendFailure, reason, ok)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
}

func TestDispatchImage(t *testing.T) {
	vision := &fakeVision{result: PageResult{Text: "a signed delivery note", Confidence: 0.9, Method: "vision"}}
	d := NewDispatcher(&fakeOCR{}, vision, nil)

	pages, err := d.Dispatch(context.Background(), "/in/scan.png", constants.IMAGE)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(pages))
	}
	if pages[0].PageNumber != 1 {
		t.Errorf("expected page number defaulted to 1, got %d", pages[0].PageNumber)
	}
	if pages[0].Text != "a signed delivery note" {
		t.Errorf("unexpected text: %q", pages[0].Text)
	}
}

func TestDispatchImageBackendFailure(t *testing.T) {
	d := NewDispatcher(&fakeOCR{}, &fakeVision{err: errors.New("status 500")}, nil)

	_, err := d.Dispatch(context.Background(), "/in/broken.jpg", constants.IMAGE)
	if reason, ok := ReasonOf(err); !ok || reason != BackendFailure {
		t.Fatalf("expected reason %s, got %v (ok=%v)", BackendFailure, reason, ok)
	}
}

func TestDispatchText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain notes\nsecond line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(&fakeOCR{}, &fakeVision{}, nil)

	pages, err := d.Dispatch(context.Background(), path, constants.TEXT)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "plain notes\nsecond line\n" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
	if pages[0].Method != "text-read" {
		t.Errorf("expected method text-read, got %q", pages[0].Method)
	}
}

func TestDispatchTextInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binary.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(&fakeOCR{}, &fakeVision{}, nil)

	_, err := d.Dispatch(context.Background(), path, constants.TEXT)
	if reason, ok := ReasonOf(err); !ok || reason != DecodeError {
		t.Fatalf("expected reason %s, got %v (ok=%v)", DecodeError, reason, ok)
	}
}

func TestDispatchTextMissingFile(t *testing.T) {
	d := NewDispatcher(&fakeOCR{}, &fakeVision{}, nil)

	_, err := d.Dispatch(context.Background(), filepath.Join(t.TempDir(), "gone.txt"), constants.TEXT)
	if reason, ok := ReasonOf(err); !ok || reason != DecodeError {
		t.Fatalf("expected reason %s, got %v (ok=%v)", DecodeError, reason, ok)
	}
}

func TestDispatchUnsupportedKind(t *testing.T) {
	ocr := &fakeOCR{}
	vision := &fakeVision{}
	d := NewDispatcher(ocr, vision, nil)

	_, err := d.Dispatch(context.Background(), "/in/archive.zip", constants.ItemKind("ARCHIVE"))
	if reason, ok := ReasonOf(err); !ok || reason != UnsupportedType {
		t.Fatalf("expected reason %s, got %v (ok=%v)", UnsupportedType, reason, ok)
	}
	if len(ocr.calls) != 0 || len(vision.calls) != 0 {
		t.Errorf("no backend should be called for an unsupported kind")
	}
}
