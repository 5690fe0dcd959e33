package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/monctl/monctl/pkg/engine"
)

var validate = validator.New()

// ResourceConfig is one resource document in a definitions file.
type ResourceConfig struct {
	// Kind is the resource type.
	Kind string `yaml:"kind" validate:"required,oneof=monitor dashboard slo synthetic"`

	// ID identifies the resource within its project.
	ID string `yaml:"id" validate:"required,max=128,excludes=:"`

	// Name is the human-readable name.
	Name string `yaml:"name" validate:"required"`

	// Project groups resources and prefixes the tracking id.
	Project string `yaml:"project" validate:"required,max=64,excludes=:"`

	// Spec is the body sent to the monitoring service.
	Spec map[string]interface{} `yaml:"spec"`
}

// ValidationError describes a problem with one resource document.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line of the document start (1-indexed).
	Line int `json:"line,omitempty"`

	// Message describes the problem.
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// ValidationErrors collects every problem found while loading resources.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid resource(s):\n  %s", len(v), strings.Join(msgs, "\n  "))
}

// IsResourceFile reports whether path has a YAML extension.
func IsResourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadResources reads resource documents from files and directories.
// Directories are walked recursively for .yaml and .yml files. A file may hold
// several documents separated by "---". Tracking ids must be unique across
// all inputs. All problems are reported together as ValidationErrors.
func LoadResources(paths ...string) ([]engine.Resource, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	var (
		resources []engine.Resource
		problems  ValidationErrors
		seen      = make(map[string]string)
	)

	for _, file := range files {
		docs, errs, err := loadFile(file)
		if err != nil {
			return nil, err
		}
		problems = append(problems, errs...)

		for _, doc := range docs {
			id := doc.res.TrackingID()
			if first, dup := seen[id]; dup {
				problems = append(problems, ValidationError{
					File:    file,
					Line:    doc.line,
					Message: fmt.Sprintf("duplicate tracking id %s (first defined in %s)", id, first),
				})
				continue
			}
			seen[id] = file
			resources = append(resources, doc.res)
		}
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return resources, nil
}

type loadedResource struct {
	res  engine.Resource
	line int
}

func loadFile(path string) ([]loadedResource, ValidationErrors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open resource file: %w", err)
	}
	defer f.Close()

	var (
		docs     []loadedResource
		problems ValidationErrors
	)

	dec := yaml.NewDecoder(f)
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			problems = append(problems, ValidationError{File: path, Message: err.Error()})
			break
		}
		if len(node.Content) == 0 {
			continue
		}

		line := node.Content[0].Line
		var rc ResourceConfig
		if err := node.Decode(&rc); err != nil {
			problems = append(problems, ValidationError{File: path, Line: line, Message: err.Error()})
			continue
		}
		if err := validate.Struct(rc); err != nil {
			var verrs validator.ValidationErrors
			msg := err.Error()
			if errors.As(err, &verrs) {
				msg = formatFieldErrors(verrs)
			}
			problems = append(problems, ValidationError{File: path, Line: line, Message: msg})
			continue
		}

		docs = append(docs, loadedResource{
			line: line,
			res: engine.Resource{
				Kind:    engine.ResourceKind(rc.Kind),
				ID:      rc.ID,
				Name:    rc.Name,
				Project: rc.Project,
				Spec:    rc.Spec,
				Source:  path,
			},
		})
	}

	return docs, problems, nil
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat resource path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsResourceFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func formatFieldErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}
