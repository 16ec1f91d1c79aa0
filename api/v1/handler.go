package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linblog/internal/analytics"
	"linblog/internal/pageviews"
	"linblog/internal/pkg/geoip"
	"linblog/internal/pkg/user_agent"
)

const (
	errInvalidRequest = "Invalid request"
	errInvalidPostID  = "Invalid post ID"
	errInvalidSource  = "Invalid source"
)

// RecordViewParams is the optional JSON body of a view beacon. It may be sent
// as text/plain by navigator.sendBeacon.
type RecordViewParams struct {
	Source   string `json:"source"`
	Referrer string `json:"referrer"`
}

// RecordViewResponse tells the caller whether the view was counted.
type RecordViewResponse struct {
	Recorded   bool                   `json:"recorded"`
	Reason     pageviews.IgnoreReason `json:"reason,omitempty"`
	DeviceType pageviews.DeviceType   `json:"device_type,omitempty"`
	EventID    string                 `json:"event_id,omitempty"`
	Bot        string                 `json:"bot,omitempty"`
}

// RecordPostViewHandler counts one read of a post. Storage failures are logged
// and answered with 202 so a broken analytics store never breaks page rendering.
func RecordPostViewHandler(ctx *cartridge.Context) error {
	postID, err := ctx.ParamsInt("id")
	if err != nil || postID <= 0 {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidPostID,
			"code":  "INVALID_POST_ID",
		})
	}

	params, err := parseRecordViewParams(ctx)
	if err != nil {
		ctx.Logger.Debug("Failed to parse view request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}

	source, ok := parseSource(params.Source, ctx.Query("source"))
	if !ok {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidSource,
			"code":  "INVALID_SOURCE",
		})
	}

	// the page that embeds the beacon knows the real referrer, the beacon request does not
	referer := optionalHeader(ctx.Ctx, fiber.HeaderReferer)
	if r := strings.TrimSpace(params.Referrer); r != "" {
		referer = &r
	}

	input := analytics.RecordPostViewInput{
		PostID:         uint(postID),
		Source:         source,
		IP:             clientIP(ctx.Ctx),
		UserAgent:      userAgent(ctx.Ctx),
		Referer:        referer,
		AcceptLanguage: optionalHeader(ctx.Ctx, fiber.HeaderAcceptLanguage),
	}

	service := analytics.NewGormService(ctx.DBManager.GetConnection(), countryResolver())
	result, err := service.RecordPostView(ctx.UserContext(), input)
	if err != nil {
		ctx.Logger.Error("Failed to record post view",
			slog.Int("post_id", postID),
			slog.Any("error", err))
		return ctx.Status(http.StatusAccepted).JSON(RecordViewResponse{Recorded: false})
	}

	resp := RecordViewResponse{
		Recorded:   result.OK(),
		Reason:     result.Reason,
		DeviceType: result.DeviceType,
		EventID:    result.EventID,
	}
	if result.Reason == pageviews.IgnoredBot {
		resp.Bot = user_agent.BotName(input.UserAgent)
	}

	if result.Ignored {
		ctx.Logger.Debug("Post view ignored",
			slog.Int("post_id", postID),
			slog.String("reason", string(result.Reason)),
			slog.String("bot", resp.Bot))
	}

	return ctx.Status(http.StatusAccepted).JSON(resp)
}

func parseRecordViewParams(ctx *cartridge.Context) (RecordViewParams, error) {
	var params RecordViewParams

	body := ctx.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(body, &params); err != nil {
		return params, err
	}
	return params, nil
}

// parseSource reads the body value first, then the query string. Empty means frontend.
func parseSource(values ...string) (pageviews.Source, bool) {
	for _, v := range values {
		switch pageviews.Source(strings.ToLower(strings.TrimSpace(v))) {
		case "":
			continue
		case pageviews.SourceFrontend:
			return pageviews.SourceFrontend, true
		case pageviews.SourcePreview:
			return pageviews.SourcePreview, true
		default:
			return "", false
		}
	}
	return pageviews.SourceFrontend, true
}

func countryResolver() pageviews.CountryResolver {
	if r := geoip.Default(); r != nil {
		return r
	}
	return nil
}
