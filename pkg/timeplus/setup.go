package timeplus

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetupStreams creates all required streams in Timeplus
func SetupStreams(ctx context.Context, client TimeplusClient) error {
	streams := []struct {
		name   string
		schema []Column
	}{
		{ResponseEventsStream, GetResponseEventsSchema()},
		{AlertEventsStream, GetAlertEventsSchema()},
	}

	for _, s := range streams {
		exists, err := client.StreamExists(ctx, s.name)
		if err != nil {
			return fmt.Errorf("failed to check stream %s: %w", s.name, err)
		}
		if exists {
			logrus.Infof("Stream %s already exists", s.name)
			continue
		}
		if err := client.CreateStream(ctx, s.name, s.schema); err != nil {
			return err
		}
		logrus.Infof("Created stream %s", s.name)
	}
	return nil
}
