package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"agentspace/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const scoreboardCacheTTL = 5 * time.Minute

// ScoreboardRow is one ranked agent on the leaderboard.
type ScoreboardRow struct {
	Rank          int     `json:"rank" gorm:"-"`
	AgentID       uint    `json:"agentId"`
	AgentName     string  `json:"agentName"`
	PhotoURL      string  `json:"photoUrl"`
	DealCount     int     `json:"dealCount"`
	TotalPremium  float64 `json:"totalPremium"`
	AverageTicket float64 `json:"averageTicket"`
}

// resolveScoreboardRange turns a named range preset (or a custom from/to
// pair) into a half-open [start, end) interval. Weeks start on Monday.
func resolveScoreboardRange(rangeName, from, to string, now time.Time) (time.Time, time.Time, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch rangeName {
	case "", "week":
		weekday := int(today.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday belongs to the week that started the previous Monday
		}
		start := today.AddDate(0, 0, -(weekday - 1))
		return start, start.AddDate(0, 0, 7), nil
	case "month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case "quarter":
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		start := time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, 0), nil
	case "year":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	case "custom":
		if from == "" || to == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("custom range requires from and to")
		}
		start, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date")
		}
		end, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date")
		}
		end = end.AddDate(0, 0, 1) // inclusive end date
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("to must not be before from")
		}
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown range %q", rangeName)
	}
}

// GetScoreboardHandler returns agents ranked by submitted production over the
// requested date range. Results are cached briefly in Redis since the
// leaderboard is polled by every dashboard session.
func GetScoreboardHandler(c *gin.Context) {
	rangeName := c.Query("range")
	start, end, err := resolveScoreboardRange(rangeName, c.Query("from"), c.Query("to"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cacheKey := fmt.Sprintf("scoreboard:%s:%s", start.Format("20060102"), end.Format("20060102"))
	if config.RDB != nil {
		cached, err := config.RDB.Get(config.Ctx, cacheKey).Result()
		if err == nil {
			var rows []ScoreboardRow
			if json.Unmarshal([]byte(cached), &rows) == nil {
				c.JSON(http.StatusOK, gin.H{"data": rows, "from": start, "to": end, "cached": true})
				return
			}
		} else if err != redis.Nil {
			slog.Error("redis GET failed for scoreboard", "error", err)
		}
	}

	var rows []ScoreboardRow
	err = config.DB.Table("deals").
		Select(`deals.agent_id,
		        users.full_name AS agent_name,
		        users.photo_url AS photo_url,
		        COUNT(deals.id) AS deal_count,
		        COALESCE(SUM(deals.annual_premium), 0) AS total_premium`).
		Joins("JOIN users ON users.id = deals.agent_id").
		Where("deals.deleted_at IS NULL").
		Where("deals.status NOT IN ?", []string{"draft", "declined", "cancelled"}).
		Where("deals.submitted_at >= ? AND deals.submitted_at < ?", start, end).
		Group("deals.agent_id, users.full_name, users.photo_url").
		Order("total_premium DESC").
		Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute scoreboard"})
		return
	}

	for i := range rows {
		rows[i].Rank = i + 1
		if rows[i].DealCount > 0 {
			rows[i].AverageTicket = rows[i].TotalPremium / float64(rows[i].DealCount)
		}
	}

	if config.RDB != nil {
		if data, err := json.Marshal(rows); err == nil {
			if err := config.RDB.Set(config.Ctx, cacheKey, data, scoreboardCacheTTL).Err(); err != nil {
				slog.Error("failed to cache scoreboard", "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": rows, "from": start, "to": end, "cached": false})
}
