package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	registryTemporaryFilePatternConstant = ".registry-*.yaml"
	registryDirectoryCreateErrorTemplate = "unable to create registry directory %s: %w"
	registryMarshalErrorTemplateConstant = "unable to serialize registry: %w"
	registryWriteErrorTemplateConstant   = "unable to write registry state to %s: %w"
	registryReplaceErrorTemplateConstant = "unable to move registry state into place at %s: %w"
	registryFilePermissionConstant       = 0o600
	registryDirectoryPermissionConstant  = 0o755
)

// InitFromFile loads persisted registry state from the path. A missing file
// yields a fresh empty registry; malformed state is recoverable and also
// yields a fresh registry after logging a warning. Neither condition is fatal.
func InitFromFile(registryPath string, logger *zap.Logger) *Service {
	service := NewService(logger)

	persistedContent, readError := os.ReadFile(registryPath)
	if readError != nil {
		if !os.IsNotExist(readError) {
			service.logger.Warn(registryMalformedStateMessageConstant,
				zap.String(registryPathFieldNameConstant, registryPath),
				zap.Error(readError),
			)
		}
		return service
	}

	var persistedDocument document
	if unmarshalError := yaml.Unmarshal(persistedContent, &persistedDocument); unmarshalError != nil {
		service.logger.Warn(registryMalformedStateMessageConstant,
			zap.String(registryPathFieldNameConstant, registryPath),
			zap.Error(unmarshalError),
		)
		return service
	}

	if persistedDocument.Artifacts != nil {
		service.artifacts = persistedDocument.Artifacts
	}
	service.lastModifiedUTC = persistedDocument.LastModifiedUTC

	service.logger.Debug(registryInitializedMessageConstant,
		zap.String(registryPathFieldNameConstant, registryPath),
		zap.Int(registryArtifactCountFieldNameConstant, len(service.artifacts)),
	)
	return service
}

// Persist writes the full registry state to the path atomically: the document
// is written to a temporary file in the destination directory and then moved
// into place, so a crash mid-write cannot corrupt an existing registry file.
func (service *Service) Persist(registryPath string) error {
	registryDirectory := filepath.Dir(registryPath)
	if directoryError := os.MkdirAll(registryDirectory, registryDirectoryPermissionConstant); directoryError != nil {
		return fmt.Errorf(registryDirectoryCreateErrorTemplate, registryDirectory, directoryError)
	}

	serializedDocument, marshalError := yaml.Marshal(document{
		Artifacts:       service.artifacts,
		LastModifiedUTC: service.lastModifiedUTC,
	})
	if marshalError != nil {
		return fmt.Errorf(registryMarshalErrorTemplateConstant, marshalError)
	}

	temporaryFile, temporaryFileError := os.CreateTemp(registryDirectory, registryTemporaryFilePatternConstant)
	if temporaryFileError != nil {
		return fmt.Errorf(registryWriteErrorTemplateConstant, registryPath, temporaryFileError)
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(serializedDocument); writeError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf(registryWriteErrorTemplateConstant, registryPath, writeError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(registryWriteErrorTemplateConstant, registryPath, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, registryFilePermissionConstant); chmodError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(registryWriteErrorTemplateConstant, registryPath, chmodError)
	}

	if renameError := os.Rename(temporaryPath, registryPath); renameError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(registryReplaceErrorTemplateConstant, registryPath, renameError)
	}
	return nil
}
