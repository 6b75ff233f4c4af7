package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

// InfluxTarget addresses an InfluxDB v2 bucket.
type InfluxTarget struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether enough is configured to write.
func (t InfluxTarget) Enabled() bool { return t.URL != "" && t.Bucket != "" }

var influxClient = &http.Client{Timeout: 5 * time.Second}

// PushInflux writes the current snapshot as a single line-protocol point.
func PushInflux(ctx context.Context, t InfluxTarget) error {
	if !t.Enabled() {
		return nil
	}
	q := url.Values{"org": {t.Org}, "bucket": {t.Bucket}, "precision": {"s"}}
	writeURL := fmt.Sprintf("%s/api/v2/write?%s", strings.TrimRight(t.URL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writeURL, bytes.NewReader([]byte(lineProtocol(GetSnapshot(), time.Now()))))
	if err != nil {
		return fmt.Errorf("influxdb request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+t.Token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := influxClient.Do(req)
	if err != nil {
		return fmt.Errorf("influxdb push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("influxdb rejected metrics: status %d", resp.StatusCode)
	}
	logging.Get().Debug().Str("url", t.URL).Msg("metrics written to influxdb")
	return nil
}

// Influx Line Protocol:
// measurement field=value,... timestamp
func lineProtocol(s StatsSnapshot, now time.Time) string {
	return fmt.Sprintf(
		"autocheckin checkins_success=%di,checkins_failed=%di,balance_changes=%di,notifications_sent=%di,notifications_failed=%di,last_run=%di %d",
		s.CheckinsSuccess, s.CheckinsFailed, s.BalanceChanges, s.NotificationsSent, s.NotificationsFailed, s.LastRun, now.Unix(),
	)
}
