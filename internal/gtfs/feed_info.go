package gtfs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/OneBusAway/go-gtfs/constants"
	gtfscsv "github.com/OneBusAway/go-gtfs/csv"
)

const feedInfoFile constants.StaticFile = "feed_info.txt"

// FeedInfo is one row of feed_info.txt.
type FeedInfo struct {
	PublisherName string
	PublisherURL  string
	Lang          string
	StartDate     string
	EndDate       string
	Version       string
	ContactEmail  string
}

func readFeedInfo(path string) ([]FeedInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err == nil && st.Size() == 0 {
		_ = f.Close()
		return nil, nil
	}
	return parseFeedInfo(f)
}

// parseFeedInfo reads every row of feed_info.txt and closes rc. All columns
// are optional.
func parseFeedInfo(rc io.ReadCloser) ([]FeedInfo, error) {
	file, err := gtfscsv.New(feedInfoFile, rc)
	if err != nil {
		return nil, fmt.Errorf("error reading feed_info header: %w", err)
	}

	publisherName := file.OptionalColumn("feed_publisher_name")
	publisherURL := file.OptionalColumn("feed_publisher_url")
	lang := file.OptionalColumn("feed_lang")
	startDate := file.OptionalColumn("feed_start_date")
	endDate := file.OptionalColumn("feed_end_date")
	version := file.OptionalColumn("feed_version")
	contactEmail := file.OptionalColumn("feed_contact_email")

	var out []FeedInfo
	for file.NextRow() {
		out = append(out, FeedInfo{
			PublisherName: strings.TrimSpace(publisherName.Read()),
			PublisherURL:  strings.TrimSpace(publisherURL.Read()),
			Lang:          strings.TrimSpace(lang.Read()),
			StartDate:     strings.TrimSpace(startDate.Read()),
			EndDate:       strings.TrimSpace(endDate.Read()),
			Version:       strings.TrimSpace(version.Read()),
			ContactEmail:  strings.TrimSpace(contactEmail.Read()),
		})
	}
	if err := file.Close(); err != nil {
		return out, fmt.Errorf("error reading feed_info row: %w", err)
	}
	return out, nil
}
