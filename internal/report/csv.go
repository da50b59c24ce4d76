package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

type Encoding string

const (
	EncodingUTF8     Encoding = "utf8"
	EncodingShiftJIS Encoding = "sjis"

	CSVExtension = "csv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseEncoding: 空なら UTF-8。sjis / shift_jis / cp932 は Shift_JIS。
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf8", "utf-8":
		return EncodingUTF8, nil
	case "sjis", "shift_jis", "shift-jis", "cp932":
		return EncodingShiftJIS, nil
	default:
		return "", fmt.Errorf("unsupported csv encoding %q", s)
	}
}

func (e Encoding) ContentType() string {
	if e == EncodingShiftJIS {
		return "text/csv; charset=Shift_JIS"
	}
	return "text/csv; charset=utf-8"
}

// WriteCSV: 見出し行 → データ行。
// UTF-8 は BOM 付き（Excel で文字化けしないように）。
// Shift_JIS で表せない文字は置き換える。
func WriteCSV(w io.Writer, rows []Row, enc Encoding) error {
	var out io.Writer = w
	var closer io.Closer
	switch enc {
	case EncodingUTF8, "":
		if _, err := w.Write(utf8BOM); err != nil {
			return err
		}
	case EncodingShiftJIS:
		tw := transform.NewWriter(w, encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder()))
		out, closer = tw, tw
	default:
		return fmt.Errorf("unsupported csv encoding %q", enc)
	}

	cw := csv.NewWriter(out)
	header := make([]string, len(Columns))
	for i, col := range Columns {
		header[i] = col.Header
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(Columns))
	for _, r := range rows {
		for i, col := range Columns {
			record[i] = col.Value(r)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}
