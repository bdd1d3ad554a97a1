// Package registry maintains the persisted, content-hashed catalogue of every
// artifact the pipeline produces. The registry is the provenance record an
// external report renderer or audit tool queries to learn what was produced,
// from what inputs, when, and with what integrity hash, without re-scanning
// the filesystem.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ArtifactType tags the category of a registered artifact.
type ArtifactType string

// Supported artifact types.
const (
	ArtifactTypeRawData          ArtifactType = "raw-data"
	ArtifactTypePlot             ArtifactType = "plot"
	ArtifactTypeReport           ArtifactType = "report"
	ArtifactTypeSerializedObject ArtifactType = "serialized-object"
)

// RunIdentifierMetadataKey is the metadata key carrying the generation-group
// identifier an orchestration pass stamps on every artifact it produces.
const RunIdentifierMetadataKey = "run_id"

const (
	registryInitializedMessageConstant        = "artifact registry initialized"
	registryMalformedStateMessageConstant     = "persisted registry state malformed; starting empty"
	registryDependencyWarningTemplateConstant = "artifact %q lists unknown input artifact %q"
	registryHashErrorTemplateConstant         = "unable to hash artifact file %s: %w"
	registryArtifactRegisteredMessageConstant = "artifact registered"
	registryPathFieldNameConstant             = "registry_path"
	registryArtifactFieldNameConstant         = "artifact"
	registryArtifactTypeFieldNameConstant     = "artifact_type"
	registryArtifactCountFieldNameConstant    = "artifact_count"
	registryContentHashFieldNameConstant      = "content_hash"
)

// Artifact describes one tracked output and its provenance.
type Artifact struct {
	Name        string            `yaml:"name" json:"name"`
	Type        ArtifactType      `yaml:"type" json:"type"`
	Workflow    string            `yaml:"workflow" json:"workflow"`
	FilePath    string            `yaml:"file_path" json:"file_path"`
	ContentHash string            `yaml:"content_hash" json:"content_hash"`
	Inputs      []string          `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedUTC  time.Time         `yaml:"created_utc" json:"created_utc"`
}

// RunIdentifier reports the artifact's generation-group identifier, empty when
// the artifact predates run stamping.
func (artifact Artifact) RunIdentifier() string {
	return artifact.Metadata[RunIdentifierMetadataKey]
}

// document is the registry's persisted YAML shape.
type document struct {
	Artifacts       map[string]Artifact `yaml:"artifacts"`
	LastModifiedUTC time.Time           `yaml:"last_modified_utc"`
}

// Service owns the in-memory registry state for one run.
type Service struct {
	artifacts       map[string]Artifact
	lastModifiedUTC time.Time
	warnings        []string
	logger          *zap.Logger
}

// NewService constructs an empty registry service. A nil logger falls back to
// a no-op logger.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{artifacts: map[string]Artifact{}, logger: logger}
}

// RegistrationRequest carries the inputs to Register.
type RegistrationRequest struct {
	Name           string
	Type           ArtifactType
	Workflow       string
	FilePath       string
	InputArtifacts []string
	Metadata       map[string]string
	ContentHash    string
}

// Register inserts or overwrites the artifact named in the request, computing
// the content hash from the file when the request does not supply one. An
// input edge naming an unknown artifact records an integrity warning but never
// blocks registration. The caller persists when it chooses.
func (service *Service) Register(request RegistrationRequest) (Artifact, error) {
	contentHash := strings.TrimSpace(request.ContentHash)
	if len(contentHash) == 0 {
		computedHash, hashError := HashFile(request.FilePath)
		if hashError != nil {
			return Artifact{}, fmt.Errorf(registryHashErrorTemplateConstant, request.FilePath, hashError)
		}
		contentHash = computedHash
	}

	for _, inputName := range request.InputArtifacts {
		if _, exists := service.artifacts[inputName]; !exists {
			service.warnings = append(service.warnings, fmt.Sprintf(registryDependencyWarningTemplateConstant, request.Name, inputName))
		}
	}

	artifact := Artifact{
		Name:        request.Name,
		Type:        request.Type,
		Workflow:    request.Workflow,
		FilePath:    request.FilePath,
		ContentHash: contentHash,
		Inputs:      append([]string{}, request.InputArtifacts...),
		Metadata:    cloneMetadata(request.Metadata),
		CreatedUTC:  time.Now().UTC(),
	}

	service.artifacts[request.Name] = artifact
	service.lastModifiedUTC = artifact.CreatedUTC

	service.logger.Debug(registryArtifactRegisteredMessageConstant,
		zap.String(registryArtifactFieldNameConstant, artifact.Name),
		zap.String(registryArtifactTypeFieldNameConstant, string(artifact.Type)),
		zap.String(registryContentHashFieldNameConstant, artifact.ContentHash),
	)
	return artifact, nil
}

// Lookup returns the artifact registered under the name.
func (service *Service) Lookup(artifactName string) (Artifact, bool) {
	artifact, exists := service.artifacts[artifactName]
	return artifact, exists
}

// Artifacts returns every registered artifact ordered by name.
func (service *Service) Artifacts() []Artifact {
	artifacts := make([]Artifact, 0, len(service.artifacts))
	for _, artifact := range service.artifacts {
		artifacts = append(artifacts, artifact)
	}
	sort.Slice(artifacts, func(firstIndex int, secondIndex int) bool {
		return artifacts[firstIndex].Name < artifacts[secondIndex].Name
	})
	return artifacts
}

// ArtifactCount reports the number of registered artifacts.
func (service *Service) ArtifactCount() int {
	return len(service.artifacts)
}

// LastModifiedUTC reports the most recent registry mutation time.
func (service *Service) LastModifiedUTC() time.Time {
	return service.lastModifiedUTC
}

// Warnings drains the integrity warnings recorded since the last call.
func (service *Service) Warnings() []string {
	drained := service.warnings
	service.warnings = nil
	return drained
}

// HashFile computes the hex-encoded sha256 digest of the file contents.
func HashFile(filePath string) (string, error) {
	fileHandle, openError := os.Open(filePath)
	if openError != nil {
		return "", openError
	}
	defer fileHandle.Close()

	digest := sha256.New()
	if _, copyError := io.Copy(digest, fileHandle); copyError != nil {
		return "", copyError
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return map[string]string{}
	}
	cloned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}
	return cloned
}
