package registry

import (
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	cleanupCompleteMessageConstant       = "registry cleanup complete"
	cleanupDryRunMessageConstant         = "registry cleanup dry run"
	cleanupDeletedCountFieldNameConstant = "deleted_count"
	cleanupFreedBytesFieldNameConstant   = "freed_bytes"
	cleanupKeepCountFieldNameConstant    = "keep_count"
)

// CleanupOutcome summarizes one cleanup pass.
type CleanupOutcome struct {
	DeletedCount int
	FreedBytes   int64
}

// Cleanup retains the newest keepCount generation groups of the given artifact
// type and removes everything older, deleting both the underlying files and
// the registry entries. A generation group is the set of artifacts sharing a
// run identifier; artifacts without one age out together as a single group. A
// missing file counts as already clean: the stale entry is removed without
// error. When dryRun is set nothing is deleted and the registry is left
// untouched; otherwise the caller is expected to persist afterwards.
func (service *Service) Cleanup(artifactType ArtifactType, keepCount int, dryRun bool) CleanupOutcome {
	groupCreationTimes := map[string]time.Time{}
	groupMembers := map[string][]Artifact{}

	for _, artifact := range service.artifacts {
		if artifact.Type != artifactType {
			continue
		}
		runIdentifier := artifact.RunIdentifier()
		groupMembers[runIdentifier] = append(groupMembers[runIdentifier], artifact)
		if artifact.CreatedUTC.After(groupCreationTimes[runIdentifier]) {
			groupCreationTimes[runIdentifier] = artifact.CreatedUTC
		}
	}

	groupIdentifiers := make([]string, 0, len(groupMembers))
	for runIdentifier := range groupMembers {
		groupIdentifiers = append(groupIdentifiers, runIdentifier)
	}
	sort.Slice(groupIdentifiers, func(firstIndex int, secondIndex int) bool {
		return groupCreationTimes[groupIdentifiers[firstIndex]].After(groupCreationTimes[groupIdentifiers[secondIndex]])
	})

	if keepCount < 0 {
		keepCount = 0
	}
	if keepCount > len(groupIdentifiers) {
		keepCount = len(groupIdentifiers)
	}

	outcome := CleanupOutcome{}
	for _, runIdentifier := range groupIdentifiers[keepCount:] {
		for _, artifact := range groupMembers[runIdentifier] {
			if fileInfo, statError := os.Stat(artifact.FilePath); statError == nil {
				outcome.FreedBytes += fileInfo.Size()
				if !dryRun {
					os.Remove(artifact.FilePath)
				}
			}
			outcome.DeletedCount++
			if !dryRun {
				delete(service.artifacts, artifact.Name)
			}
		}
	}

	if !dryRun && outcome.DeletedCount > 0 {
		service.lastModifiedUTC = time.Now().UTC()
	}

	completionMessage := cleanupCompleteMessageConstant
	if dryRun {
		completionMessage = cleanupDryRunMessageConstant
	}
	service.logger.Info(completionMessage,
		zap.String(registryArtifactTypeFieldNameConstant, string(artifactType)),
		zap.Int(cleanupKeepCountFieldNameConstant, keepCount),
		zap.Int(cleanupDeletedCountFieldNameConstant, outcome.DeletedCount),
		zap.Int64(cleanupFreedBytesFieldNameConstant, outcome.FreedBytes),
	)
	return outcome
}
