package source

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/bookpager/internal/book"
)

// EPUBSource reads an EPUB container. One spine document is one chapter;
// documents are read from the archive and parsed on demand, so only the
// chapters the buffer keeps resident occupy memory.
type EPUBSource struct {
	rc    *zip.ReadCloser
	files map[string]*zip.File
	title string
	spine []spineEntry
}

type spineEntry struct {
	href string
}

type containerXML struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles []string `xml:"title"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// OpenEPUB opens an .epub book file.
func OpenEPUB(filePath string) (*EPUBSource, error) {
	rc, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	s := &EPUBSource{
		rc:    rc,
		files: make(map[string]*zip.File, len(rc.File)),
		title: titleFromPath(filePath),
	}
	for _, f := range rc.File {
		s.files[f.Name] = f
	}
	if err := s.readStructure(); err != nil {
		rc.Close()
		return nil, err
	}
	return s, nil
}

// readStructure resolves container.xml -> OPF -> spine into chapter hrefs.
func (s *EPUBSource) readStructure() error {
	var cont containerXML
	if err := s.decodeXML("META-INF/container.xml", &cont); err != nil {
		return fmt.Errorf("read container: %w", err)
	}
	if len(cont.Rootfiles) == 0 {
		return fmt.Errorf("epub container lists no rootfile")
	}
	opfPath := cont.Rootfiles[0].FullPath

	var pkg opfPackage
	if err := s.decodeXML(opfPath, &pkg); err != nil {
		return fmt.Errorf("read opf: %w", err)
	}
	if len(pkg.Metadata.Titles) > 0 && strings.TrimSpace(pkg.Metadata.Titles[0]) != "" {
		s.title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}

	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		if strings.Contains(item.MediaType, "html") {
			hrefByID[item.ID] = item.Href
		}
	}

	opfDir := path.Dir(opfPath)
	for _, ref := range pkg.Spine.ItemRefs {
		if ref.Linear == "no" {
			continue
		}
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		full := href
		if opfDir != "." {
			full = path.Join(opfDir, href)
		}
		s.spine = append(s.spine, spineEntry{href: full})
	}
	if len(s.spine) == 0 {
		return fmt.Errorf("epub spine lists no readable documents")
	}
	return nil
}

func (s *EPUBSource) decodeXML(name string, v any) error {
	f, ok := s.files[name]
	if !ok {
		return fmt.Errorf("missing %s", name)
	}
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	return xml.NewDecoder(r).Decode(v)
}

func (s *EPUBSource) Title() string     { return s.title }
func (s *EPUBSource) ChapterCount() int { return len(s.spine) }
func (s *EPUBSource) Close() error      { return s.rc.Close() }

func (s *EPUBSource) LoadChapter(ctx context.Context, index int) (*book.ChapterContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(index, len(s.spine)); err != nil {
		return nil, err
	}
	href := s.spine[index].href
	f, ok := s.files[href]
	if !ok {
		return nil, &book.LoadError{Chapter: index, Err: fmt.Errorf("missing spine document %s", href)}
	}
	r, err := f.Open()
	if err != nil {
		return nil, &book.LoadError{Chapter: index, Err: err}
	}
	defer r.Close()

	doc, err := html.Parse(r)
	if err != nil {
		return nil, &book.LoadError{Chapter: index, Err: err}
	}

	title := firstHeadingText(doc)
	if title == "" {
		title = findTitle(doc)
	}
	root := findBody(doc)
	if root == nil {
		root = doc
	}
	return &book.ChapterContent{
		Index: index,
		Title: title,
		Text:  blockText(root),
	}, nil
}

// firstHeadingText returns the text of the first h1-h3 in the document.
func firstHeadingText(n *html.Node) string {
	if n.Type == html.ElementNode {
		if l := headingLevel(n.Data); l >= 1 && l <= 3 {
			return textContent(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstHeadingText(c); t != "" {
			return t
		}
	}
	return ""
}

// blockText extracts readable text from a chapter document, one paragraph
// per block element, skipping non-content elements.
func blockText(root *html.Node) string {
	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav":
				return
			case "p", "li", "td", "blockquote", "pre", "h1", "h2", "h3", "h4", "h5", "h6":
				if t := textContent(n); t != "" {
					blocks = append(blocks, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(blocks, "\n\n")
}
