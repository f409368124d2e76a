package testutil

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
)

// WriteTestPDF writes a structurally valid single-digit-page PDF to
// path. Pages are empty but the cross-reference table is exact, so
// strict readers resolve every object.
func WriteTestPDF(t *testing.T, path string, pages int) {
	t.Helper()
	if err := os.WriteFile(path, TestPDF(pages), 0o644); err != nil {
		t.Fatalf("failed to write test pdf: %v", err)
	}
}

// TestPDF returns the bytes of a minimal valid PDF with the given
// number of empty pages.
func TestPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int

	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		addObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n", 3+i))
	}

	xrefPos := buf.Len()
	size := pages + 3
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xrefPos)

	return buf.Bytes()
}
