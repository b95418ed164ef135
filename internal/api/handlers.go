package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "github.com/glefebvre/guidepost/internal/errors"
	"github.com/glefebvre/guidepost/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func (s *Server) healthCheck(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database not initialized",
		})
		return
	}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (s *Server) listChannels(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	rows, total, err := s.guide.ListChannels(limit, offset)
	if err != nil {
		s.respondError(c, apperrors.DatabaseError("failed to list channels", err))
		return
	}

	data := make([]ChannelResponse, 0, len(rows))
	for _, row := range rows {
		data = append(data, toChannelResponse(row))
	}
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:       data,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	})
}

func (s *Server) getChannel(c *gin.Context) {
	ch, ok := s.loadChannel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toChannelResponse(*ch))
}

// getSchedule accepts optional RFC 3339 from/to query bounds
func (s *Server) getSchedule(c *gin.Context) {
	ch, ok := s.loadChannel(c)
	if !ok {
		return
	}

	from, err := queryTime(c, "from")
	if err != nil {
		s.respondError(c, err)
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		s.respondError(c, apperrors.ValidationError("from must be before to"))
		return
	}

	rows, err := s.guide.Schedule(ch.ID, from, to)
	if err != nil {
		s.respondError(c, apperrors.DatabaseError("failed to load schedule", err))
		return
	}

	resp := ScheduleResponse{
		Channel: toChannelResponse(*ch),
		Entries: make([]EntryResponse, 0, len(rows)),
	}
	if !from.IsZero() {
		resp.From = formatTime(from)
	}
	if !to.IsZero() {
		resp.To = formatTime(to)
	}
	for _, row := range rows {
		resp.Entries = append(resp.Entries, toEntryResponse(row))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listCategories(c *gin.Context) {
	rows, err := s.cats.Records()
	if err != nil {
		s.respondError(c, apperrors.DatabaseError("failed to list categories", err))
		return
	}
	data := make([]CategoryResponse, 0, len(rows))
	for _, r := range rows {
		data = append(data, CategoryResponse{Tag: r.Tag, Descriptions: r.Descriptions, Usage: r.Usage, Sample: r.Sample})
	}
	c.JSON(http.StatusOK, gin.H{"categories": data})
}

func (s *Server) listUndefined(c *gin.Context) {
	rows, err := s.cats.Undefined()
	if err != nil {
		s.respondError(c, apperrors.DatabaseError("failed to list undefined categories", err))
		return
	}
	data := make([]UndefinedResponse, 0, len(rows))
	for _, r := range rows {
		data = append(data, UndefinedResponse{Tag: r.Tag, Sample: r.Sample, FirstSeenAt: formatTime(r.FirstSeenAt)})
	}
	c.JSON(http.StatusOK, gin.H{"undefined": data})
}

func (s *Server) listRuns(c *gin.Context) {
	limit, _, err := pagination(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	rows, err := s.runs.Recent(limit)
	if err != nil {
		s.respondError(c, apperrors.DatabaseError("failed to list runs", err))
		return
	}
	data := make([]RunResponse, 0, len(rows))
	for _, r := range rows {
		data = append(data, toRunResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"runs": data})
}

func (s *Server) loadChannel(c *gin.Context) (*models.Channel, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		s.respondError(c, apperrors.ValidationError("channel id must be a positive integer"))
		return nil, false
	}
	ch, err := s.guide.GetChannel(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.respondError(c, apperrors.NotFoundError("channel", c.Param("id")))
		return nil, false
	}
	if err != nil {
		s.respondError(c, apperrors.DatabaseError("failed to load channel", err))
		return nil, false
	}
	return ch, true
}

// respondError maps an AppError code onto an HTTP status
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetErrorCode(err) {
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeValidation, apperrors.CodeInvalidInput:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "Request failed", err)
	}
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	})
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	limit, offset = defaultLimit, 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, apperrors.ValidationError("limit must be a positive integer")
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, apperrors.ValidationError("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func queryTime(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperrors.ValidationError(name + " must be an RFC 3339 time")
	}
	return t, nil
}
