package handover

import (
	"fmt"
	"os"
)

// InjectionLine is the text handed to the host when an artifact is ready.
func InjectionLine(artifactPath string) string {
	return fmt.Sprintf("[HANDOVER] Read this file: %s", artifactPath)
}

// Injector surfaces a freshly written artifact to the next prompt of its
// session, exactly once.
type Injector struct {
	Store *Store
}

func NewInjector(store *Store) *Injector {
	return &Injector{Store: store}
}

// Inject consumes the session's ready marker. It returns the artifact path and
// true only to the caller that removed the marker, and only if the artifact is
// on disk. Without a marker it has no side effects.
func (i *Injector) Inject(sessionID, transcriptPath string) (string, bool, error) {
	if sessionID == "" {
		return "", false, nil
	}

	markedPath, ok, err := i.Store.ConsumeMarker(sessionID)
	if err != nil || !ok {
		return "", false, err
	}

	artifactPath := markedPath
	if transcriptPath != "" {
		artifactPath = ArtifactPath(transcriptPath, sessionID)
	}
	if artifactPath == "" {
		return "", false, nil
	}

	if _, err := os.Stat(artifactPath); err != nil {
		return "", false, nil
	}

	return artifactPath, true, nil
}
