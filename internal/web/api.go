package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meetlens/internal/export"
	"meetlens/internal/listing"
	"meetlens/internal/meetings"
	"meetlens/internal/model"
	"meetlens/internal/stats"
)

// meetingQuery is the decoded query string shared by the list, statistics
// and export endpoints.
type meetingQuery struct {
	start   time.Time
	end     time.Time
	mock    bool
	filter  listing.Filter
	sort    listing.SortKey
	page    int
	perPage int
}

type statisticsResponse struct {
	From       time.Time          `json:"from"`
	To         time.Time          `json:"to"`
	Statistics model.Statistics   `json:"statistics"`
	Shares     stats.ColorShares  `json:"shares"`
	Weekly     []stats.WeekBucket `json:"weekly"`
}

// parseDate accepts YYYY-MM-DD or RFC3339. A bare end date covers the whole
// day.
func parseDate(raw string, loc *time.Location, end bool) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		if end {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func (s *Server) parseQuery(q url.Values) (meetingQuery, error) {
	s.cfgMu.RLock()
	prefs := s.cfg.Preferences
	loc := s.cfg.Location()
	s.cfgMu.RUnlock()

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	mq := meetingQuery{
		start:   today.AddDate(0, 0, -prefs.DefaultRangeDays),
		end:     today.AddDate(0, 0, 1),
		mock:    parseBool(q.Get("mock"), false),
		page:    1,
		perPage: prefs.MeetingsPerPage,
		filter: listing.Filter{
			Red:   parseBool(q.Get("red"), true),
			Green: parseBool(q.Get("green"), true),
			Blue:  parseBool(q.Get("blue"), true),
		},
	}

	var err error
	if v := q.Get("start"); v != "" {
		if mq.start, err = parseDate(v, loc, false); err != nil {
			return mq, fmt.Errorf("invalid start %q", v)
		}
	}
	if v := q.Get("end"); v != "" {
		if mq.end, err = parseDate(v, loc, true); err != nil {
			return mq, fmt.Errorf("invalid end %q", v)
		}
	}
	if mq.end.Before(mq.start) {
		return mq, fmt.Errorf("end is before start")
	}
	if mq.sort, err = listing.ParseSortKey(q.Get("sort")); err != nil {
		return mq, err
	}
	if v := q.Get("page"); v != "" {
		if mq.page, err = strconv.Atoi(v); err != nil || mq.page < 1 {
			return mq, fmt.Errorf("invalid page %q", v)
		}
	}
	if v := q.Get("per_page"); v != "" {
		if mq.perPage, err = strconv.Atoi(v); err != nil || mq.perPage < 1 || mq.perPage > 500 {
			return mq, fmt.Errorf("invalid per_page %q", v)
		}
	}
	return mq, nil
}

// classified fetches and classifies the meetings lying inside the window.
func (s *Server) classified(r *http.Request, mq meetingQuery) ([]model.ClassifiedMeeting, error) {
	raw, err := s.meetings.GetMeetings(r.Context(), mq.start, mq.end, meetings.Options{UseMock: mq.mock, UseCache: true})
	if err != nil {
		return nil, err
	}
	return listing.FilterByDateRange(s.classifier.ClassifyAll(raw), mq.start, mq.end), nil
}

// serveCached writes a cached body for key, or builds, caches and writes it.
func (s *Server) serveCached(w http.ResponseWriter, key string, build func() (any, error)) {
	if body, ok := s.responses.Get(key); ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(body)
		return
	}
	v, err := build()
	if err != nil {
		writeFailure(w, err)
		return
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		writeFailure(w, err)
		return
	}
	s.responses.Add(key, buf.Bytes())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(buf.Bytes())
}

func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.Query().Encode()
}

// handleMeetings returns one page of filtered, sorted meetings.
func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	mq, err := s.parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.serveCached(w, cacheKey(r), func() (any, error) {
		all, err := s.classified(r, mq)
		if err != nil {
			return nil, err
		}
		shown := listing.Sort(mq.filter.Apply(all), mq.sort)
		return listing.Paginate(shown, mq.page, mq.perPage), nil
	})
}

// handleStatistics aggregates every meeting in the window; color filters do
// not apply.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	mq, err := s.parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.serveCached(w, cacheKey(r), func() (any, error) {
		all, err := s.classified(r, mq)
		if err != nil {
			return nil, err
		}
		report := s.stats.Calculate(all)
		return statisticsResponse{
			From:       mq.start,
			To:         mq.end,
			Statistics: report,
			Shares:     stats.Shares(report),
			Weekly:     s.stats.WeeklyBreakdown(all),
		}, nil
	})
}

// handleExport streams the filtered meetings as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mq, err := s.parseQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	all, err := s.classified(r, mq)
	if err != nil {
		writeFailure(w, err)
		return
	}
	shown := listing.Sort(mq.filter.Apply(all), mq.sort)

	var buf bytes.Buffer
	if err := export.Write(&buf, format, shown); err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// decodeStrict decodes a JSON body, rejecting unknown fields.
func decodeStrict(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}
