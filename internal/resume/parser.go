// Package resume turns uploaded documents into plain text ready for
// extraction and hashing.
package resume

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
)

// Parser extracts text from uploaded resume files. Binary formats go through
// docconv; plain text is read directly.
type Parser struct {
	uploadsDir string
}

// ParsedFile is the raw-text form of one uploaded resume.
type ParsedFile struct {
	FileName string
	FileType string
	FileSize int64
	Text     string
}

func NewParser(uploadsDir string) *Parser {
	return &Parser{uploadsDir: uploadsDir}
}

// ParseFile saves the upload and extracts its text. The saved file's path is
// recorded on the resume row as the file URI.
func (p *Parser) ParseFile(fileName string, reader io.Reader) (*ParsedFile, error) {
	if err := os.MkdirAll(p.uploadsDir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	filePath := filepath.Join(p.uploadsDir, filepath.Base(fileName))
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}

	fileType := strings.ToLower(filepath.Ext(fileName))
	var text string
	switch fileType {
	case ".pdf", ".docx", ".doc", ".rtf", ".odt":
		res, err := docconv.ConvertPath(filePath)
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		text = res.Body
	case ".txt":
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read text file: %w", err)
		}
		text = string(content)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("no text extracted from %s", fileName)
	}

	return &ParsedFile{
		FileName: fileName,
		FileType: fileType,
		FileSize: size,
		Text:     text,
	}, nil
}

// URI returns the stored path for a previously parsed file.
func (p *Parser) URI(fileName string) string {
	return filepath.Join(p.uploadsDir, filepath.Base(fileName))
}
