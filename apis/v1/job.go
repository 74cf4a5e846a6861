package v1

//go:generate go run ../../scripts/gen-docs.go

// BundleJob describes one archive: the entries to put in it and where the
// finished archive goes.
type BundleJob struct {
	Kind     string        `yaml:"kind" json:"kind" validate:"required,eq=BundleJob"`
	Metadata Metadata      `yaml:"metadata" json:"metadata"`
	Spec     BundleJobSpec `yaml:"spec" json:"spec"`
}

type Metadata struct {
	Name   string            `yaml:"name" json:"name" validate:"required" template:""`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

type BundleJobSpec struct {
	// Entries are written to the archive in the order they are listed.
	Entries []Entry     `yaml:"entries" json:"entries" validate:"required,min=1,dive"`
	Output  *OutputSpec `yaml:"output,omitempty" json:"output,omitempty"`
}

// Entry is one archive member, or a group of members for glob entries.
// Exactly one of inline, file, glob, http or exec must be set.
type Entry struct {
	ID string `yaml:"id" json:"id" validate:"required"`

	// Name is the path inside the archive. For glob entries it is the
	// directory the matches are placed under and may be empty
	// (default: entry id for inline and exec, file base name, last URL path segment).
	Name string `yaml:"name,omitempty" json:"name,omitempty" template:""`

	// Date is an RFC3339 timestamp. Defaults to the file modification time
	// for file and glob entries, and to the build time otherwise.
	Date *string `yaml:"date,omitempty" json:"date,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`

	// Mode is an octal permission string such as "0644"
	// (default: 0644, 0755 for directories).
	Mode *string `yaml:"mode,omitempty" json:"mode,omitempty" validate:"omitempty,numeric,max=4"`

	Comment *string `yaml:"comment,omitempty" json:"comment,omitempty" template:""`

	Inline *InlineEntry `yaml:"inline,omitempty" json:"inline,omitempty" oneof:"source"`
	File   *FileEntry   `yaml:"file,omitempty" json:"file,omitempty" oneof:"source"`
	Glob   *GlobEntry   `yaml:"glob,omitempty" json:"glob,omitempty" oneof:"source"`
	HTTP   *HTTPEntry   `yaml:"http,omitempty" json:"http,omitempty" oneof:"source"`
	Exec   *ExecEntry   `yaml:"exec,omitempty" json:"exec,omitempty" oneof:"source"`
}

// InlineEntry stores literal content.
type InlineEntry struct {
	Content string `yaml:"content" json:"content" template:""`
}

// FileEntry stores one file from the local filesystem.
type FileEntry struct {
	// Path is relative to the working directory unless absolute.
	Path string `yaml:"path" json:"path" validate:"required" template:""`
}

// GlobEntry stores every file matching a doublestar pattern.
type GlobEntry struct {
	// Pattern is matched relative to Root, e.g. "**/*.json".
	Pattern string `yaml:"pattern" json:"pattern" validate:"required" template:""`

	// Root is the directory the pattern is matched in (default: working directory).
	Root *string `yaml:"root,omitempty" json:"root,omitempty" template:""`
}

// HTTPEntry stores the body of an HTTP GET response.
type HTTPEntry struct {
	URL     string            `yaml:"url" json:"url" validate:"required,url" template:""`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// Timeout in seconds (default: 30).
	Timeout *int `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"omitempty,min=1"`
	// Insecure skips TLS certificate verification.
	Insecure bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// ExecEntry stores the standard output of a program.
type ExecEntry struct {
	// Program is the command and its arguments.
	Program    []string `yaml:"program" json:"program" validate:"required,min=1" template:""`
	WorkingDir *string  `yaml:"working_dir,omitempty" json:"working_dir,omitempty" template:""`
	// Timeout is a Go duration such as "10s" (default: 30s).
	Timeout *string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// Env is added to the allowed variables of the build environment.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// OutputSpec configures how the archive is encoded and where it is written.
type OutputSpec struct {
	// Name is the archive file name (default: job name plus the format extension).
	Name *string `yaml:"name,omitempty" json:"name,omitempty" template:""`

	// Format configures the archive format (default: tar with gzip).
	Format *FormatSpec `yaml:"format,omitempty" json:"format,omitempty"`

	// Sink configures where the archive is written (default: stdout).
	Sink *SinkSpec `yaml:"sink,omitempty" json:"sink,omitempty"`
}

// FormatSpec configures the archive format. At most one field may be set.
type FormatSpec struct {
	Tar *TarFormat `yaml:"tar,omitempty" json:"tar,omitempty" oneof:"format"`
	Zip *ZipFormat `yaml:"zip,omitempty" json:"zip,omitempty" oneof:"format"`
}

type TarFormat struct {
	// Compression of the tar stream (default: gzip).
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty" validate:"omitempty,oneof=gzip zstd br none"`
}

type ZipFormat struct {
	// Store disables deflate compression.
	Store   bool   `yaml:"store,omitempty" json:"store,omitempty"`
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty" template:""`
}

// SinkSpec configures the output destination. At most one field may be set.
type SinkSpec struct {
	Stdout     *StdoutSinkSpec     `yaml:"stdout,omitempty" json:"stdout,omitempty" oneof:"sink"`
	Filesystem *FilesystemSinkSpec `yaml:"filesystem,omitempty" json:"filesystem,omitempty" oneof:"sink"`
	S3         *S3SinkSpec         `yaml:"s3,omitempty" json:"s3,omitempty" oneof:"sink"`
}

// StdoutSinkSpec writes the archive to standard output (no options currently).
type StdoutSinkSpec struct{}

type FilesystemSinkSpec struct {
	// Path is the output directory (default: working directory).
	Path   *string `yaml:"path,omitempty" json:"path,omitempty" template:""`
	Prefix *string `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
}

type S3SinkSpec struct {
	Bucket         string         `yaml:"bucket" json:"bucket" validate:"required" template:""`
	Region         *string        `yaml:"region,omitempty" json:"region,omitempty" template:""`
	Endpoint       *string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty" template:""`
	Prefix         *string        `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
	ForcePathStyle bool           `yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`
	Credentials    *S3Credentials `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

type S3Credentials struct {
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" validate:"required" template:""`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" validate:"required" template:""`
}
