package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

// buildDocx zips a minimal OOXML document with one body part.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`,
		"_rels/.rels":                  `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
		"word/document.xml":            documentXML,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const twoParagraphs = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello from the first paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">And the </w:t></w:r><w:r><w:t>second one.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestTextPlain(t *testing.T) {
	got, _, err := Text("notes.txt", []byte("  hello world  \n"), 0)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestTextDocx(t *testing.T) {
	got, _, err := Text("report.DOCX", buildDocx(t, twoParagraphs), 0)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "Hello from the first paragraph.") {
		t.Errorf("missing first paragraph in %q", got)
	}
	if !strings.Contains(got, "And the second one.") {
		t.Errorf("runs not joined in %q", got)
	}
	if !strings.Contains(got, "paragraph.\n") {
		t.Errorf("no paragraph break in %q", got)
	}
}

func TestTextUnsupported(t *testing.T) {
	for _, name := range []string{"audio.mp3", "slides.pptx", "noext"} {
		if _, _, err := Text(name, []byte("data"), 0); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Text(%q) err = %v, want ErrUnsupportedType", name, err)
		}
	}
}

func TestTextEmpty(t *testing.T) {
	if _, _, err := Text("blank.txt", []byte("   \n\t"), 0); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestTextInvalidDocx(t *testing.T) {
	if _, _, err := Text("broken.docx", []byte("this is not a zip"), 0); err == nil {
		t.Error("garbage docx accepted")
	}
}

func TestTextTruncates(t *testing.T) {
	long := strings.Repeat("alpha beta ", 100) // 1100 chars
	got, truncated, err := Text("long.txt", []byte(long), 50)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if len([]rune(got)) > 50 {
		t.Errorf("result has %d runes, want <= 50", len([]rune(got)))
	}
	if !truncated {
		t.Error("truncation not reported")
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("trailing space in %q", got)
	}
	// Word-boundary cut: no split token at the end.
	last := got[strings.LastIndexByte(got, ' ')+1:]
	if last != "alpha" && last != "beta" {
		t.Errorf("cut mid-word: %q", last)
	}
}

func TestTextNonUTF8(t *testing.T) {
	if _, _, err := Text("latin1.txt", []byte{0xff, 0xfe, 0x41}, 0); err == nil {
		t.Error("invalid UTF-8 accepted")
	}
}
