//go:build ignore

// gen-docs writes the BundleJob reference to docs/job-reference.md.
//
// It walks the apis/v1 types starting at BundleJob and renders one table per
// struct. Required fields come from validate tags, template support from
// template tags, defaults from "(default: ...)" in field comments, and
// mutually exclusive fields from oneof tags.
package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
)

const (
	rootType   = "BundleJob"
	outputFile = "job-reference.md"
)

type structDoc struct {
	name   string
	doc    string
	fields []fieldDoc
}

type fieldDoc struct {
	key      string
	goType   string
	ref      string
	required bool
	template bool
	oneOf    string
	enum     []string
	def      string
	doc      string
}

var defaultPattern = regexp.MustCompile(`\(default: ([^()]*(?:\([^()]*\)[^()]*)*)\)`)

func main() {
	root, err := findProjectRoot()
	if err != nil {
		fail("failed to find project root: %v", err)
	}

	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedSyntax | packages.NeedFiles | packages.NeedName,
		Dir:  root,
	}, "./apis/v1")
	if err != nil {
		fail("failed to load apis/v1: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		os.Exit(1)
	}

	structs := map[string]*ast.TypeSpec{}
	docs := map[string]string{}
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			collectStructs(file, structs, docs)
		}
	}

	ordered, err := walk(rootType, structs, docs)
	if err != nil {
		fail("%v", err)
	}

	var buf bytes.Buffer
	render(&buf, ordered)

	outputDir := filepath.Join(root, "docs")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fail("failed to create %s: %v", outputDir, err)
	}
	outputPath := filepath.Join(outputDir, outputFile)
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		fail("failed to write %s: %v", outputPath, err)
	}
	fmt.Printf("Generated %s (%d types)\n", outputPath, len(ordered))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func collectStructs(file *ast.File, structs map[string]*ast.TypeSpec, docs map[string]string) {
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			if _, ok := typeSpec.Type.(*ast.StructType); !ok {
				continue
			}

			structs[typeSpec.Name.Name] = typeSpec
			switch {
			case typeSpec.Doc != nil:
				docs[typeSpec.Name.Name] = typeSpec.Doc.Text()
			case genDecl.Doc != nil && len(genDecl.Specs) == 1:
				docs[typeSpec.Name.Name] = genDecl.Doc.Text()
			}
		}
	}
}

// walk lists the structs reachable from name, breadth first, so the
// reference reads from the job down to the leaf options.
func walk(name string, structs map[string]*ast.TypeSpec, docs map[string]string) ([]structDoc, error) {
	if _, ok := structs[name]; !ok {
		return nil, fmt.Errorf("type %s not found in apis/v1", name)
	}

	var ordered []structDoc
	seen := map[string]bool{name: true}
	queue := []string{name}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		sd := structDoc{name: current, doc: flatten(docs[current])}
		for _, field := range structs[current].Type.(*ast.StructType).Fields.List {
			if len(field.Names) == 0 || !ast.IsExported(field.Names[0].Name) {
				continue
			}

			fd := describeField(field)
			if fd.ref != "" {
				if _, ok := structs[fd.ref]; !ok {
					fd.ref = ""
				} else if !seen[fd.ref] {
					seen[fd.ref] = true
					queue = append(queue, fd.ref)
				}
			}
			sd.fields = append(sd.fields, fd)
		}
		ordered = append(ordered, sd)
	}

	return ordered, nil
}

func describeField(field *ast.Field) fieldDoc {
	fd := fieldDoc{key: field.Names[0].Name}

	if field.Tag != nil {
		tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
		if key, _, _ := strings.Cut(tag.Get("yaml"), ","); key != "" {
			fd.key = key
		}
		for rule := range strings.SplitSeq(tag.Get("validate"), ",") {
			switch {
			case rule == "required":
				fd.required = true
			case strings.HasPrefix(rule, "oneof="):
				fd.enum = strings.Fields(strings.TrimPrefix(rule, "oneof="))
			}
		}
		_, fd.template = tag.Lookup("template")
		fd.oneOf = tag.Get("oneof")
	}

	fd.goType, fd.ref = typeName(field.Type)

	if field.Doc != nil {
		fd.doc = flatten(field.Doc.Text())
	} else if field.Comment != nil {
		fd.doc = flatten(field.Comment.Text())
	}
	if m := defaultPattern.FindStringSubmatch(fd.doc); m != nil {
		fd.def = m[1]
		fd.doc = strings.TrimSpace(strings.Replace(fd.doc, m[0], "", 1))
		fd.doc = strings.Replace(fd.doc, " .", ".", 1)
	}

	return fd
}

// typeName renders expr as a YAML-ish type and returns the struct it
// refers to, if any.
func typeName(expr ast.Expr) (string, string) {
	switch t := expr.(type) {
	case *ast.Ident:
		switch t.Name {
		case "string", "bool":
			return t.Name, ""
		case "int", "int64":
			return "integer", ""
		default:
			return "object", t.Name
		}
	case *ast.StarExpr:
		return typeName(t.X)
	case *ast.ArrayType:
		inner, ref := typeName(t.Elt)
		return "list of " + inner, ref
	case *ast.MapType:
		key, _ := typeName(t.Key)
		val, _ := typeName(t.Value)
		return fmt.Sprintf("map of %s to %s", key, val), ""
	default:
		return "any", ""
	}
}

func render(buf *bytes.Buffer, structs []structDoc) {
	buf.WriteString("<!-- Code generated by scripts/gen-docs.go. DO NOT EDIT. -->\n\n")
	buf.WriteString("# BundleJob reference\n")

	for _, sd := range structs {
		fmt.Fprintf(buf, "\n## %s\n\n", sd.name)
		if sd.doc != "" {
			fmt.Fprintf(buf, "%s\n\n", sd.doc)
		}

		for _, group := range oneOfGroups(sd.fields) {
			fmt.Fprintf(buf, "Mutually exclusive (%s): %s.\n\n", group.name, strings.Join(group.keys, ", "))
		}

		if len(sd.fields) == 0 {
			buf.WriteString("No options.\n")
			continue
		}

		buf.WriteString("| Field | Type | Required | Template | Default | Description |\n")
		buf.WriteString("|---|---|---|---|---|---|\n")
		for _, fd := range sd.fields {
			fmt.Fprintf(buf, "| `%s` | %s | %s | %s | %s | %s |\n",
				fd.key, fieldType(fd), yesNo(fd.required), yesNo(fd.template), fd.def, description(fd))
		}
	}
}

type group struct {
	name string
	keys []string
}

func oneOfGroups(fields []fieldDoc) []group {
	var groups []group
	for _, fd := range fields {
		if fd.oneOf == "" {
			continue
		}
		idx := slices.IndexFunc(groups, func(g group) bool { return g.name == fd.oneOf })
		if idx < 0 {
			groups = append(groups, group{name: fd.oneOf})
			idx = len(groups) - 1
		}
		groups[idx].keys = append(groups[idx].keys, "`"+fd.key+"`")
	}
	return groups
}

func fieldType(fd fieldDoc) string {
	if fd.ref == "" {
		return fd.goType
	}
	anchor := strings.ToLower(fd.ref)
	return strings.Replace(fd.goType, "object", fmt.Sprintf("[%s](#%s)", fd.ref, anchor), 1)
}

func description(fd fieldDoc) string {
	desc := fd.doc
	if len(fd.enum) > 0 {
		desc = strings.TrimSpace(desc + " One of: " + strings.Join(fd.enum, ", ") + ".")
	}
	return strings.ReplaceAll(desc, "|", `\|`)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
