package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrSetting reports an invalid setting name or a value that cannot be stored
// as the setting's declared type.
var ErrSetting = errors.New("setting error")

// SettingType is the declared value type of a setting.
type SettingType string

const (
	TypeString SettingType = "str"
	TypeInt    SettingType = "int"
	TypeFloat  SettingType = "float"
	TypeBool   SettingType = "bool"
)

// Setting describes a known setting and its default.
type Setting struct {
	Group   string      `json:"group"`
	Name    string      `json:"name"`
	Type    SettingType `json:"type"`
	Default any         `json:"default"`
}

// FullName returns the group.name address of the setting.
func (s Setting) FullName() string {
	return s.Group + "." + s.Name
}

// Settings read or written by the daemon.
const (
	// LastChangeSetting holds the unix time of the most recent successful change.
	LastChangeSetting = "client.last_change"
	// LastSourceSetting holds the name of the source behind the current wallpaper.
	LastSourceSetting = "client.last_source"
	// MinWidthSetting and MinHeightSetting reject smaller images; 0 disables.
	MinWidthSetting  = "image.min_width"
	MinHeightSetting = "image.min_height"
	// ColorSaturationSetting is the HSV saturation of random colors, 0..1.
	ColorSaturationSetting = "color.saturation"
	// ColorGradientSetting fades generated colors toward the bottom edge.
	ColorGradientSetting = "color.gradient"
	// BingMarketSetting is the mkt parameter sent to the Bing archive.
	BingMarketSetting = "bing.market"
)

var settingNamePattern = regexp.MustCompile(`^([a-z][a-z0-9_]*)\.([a-z][a-z0-9_]*)$`)

var settingCatalog = map[string]Setting{
	LastChangeSetting:      {Group: "client", Name: "last_change", Type: TypeInt, Default: int64(0)},
	LastSourceSetting:      {Group: "client", Name: "last_source", Type: TypeString, Default: ""},
	MinWidthSetting:        {Group: "image", Name: "min_width", Type: TypeInt, Default: int64(0)},
	MinHeightSetting:       {Group: "image", Name: "min_height", Type: TypeInt, Default: int64(0)},
	ColorSaturationSetting: {Group: "color", Name: "saturation", Type: TypeFloat, Default: 0.6},
	ColorGradientSetting:   {Group: "color", Name: "gradient", Type: TypeBool, Default: true},
	BingMarketSetting:      {Group: "bing", Name: "market", Type: TypeString, Default: "en-US"},
}

// SettingGetter reads settings by group.name.
type SettingGetter interface {
	GetSetting(ctx context.Context, fullname string) (any, error)
}

// SettingOr returns the named setting as T. It falls back when getter is nil,
// the read fails or the value has another type.
func SettingOr[T string | int64 | float64 | bool](ctx context.Context, getter SettingGetter, fullname string, fallback T) T {
	if getter == nil {
		return fallback
	}
	value, err := getter.GetSetting(ctx, fullname)
	if err != nil {
		return fallback
	}
	typed, ok := value.(T)
	if !ok {
		return fallback
	}
	return typed
}

// SplitSettingName validates a group.name address and returns its parts.
func SplitSettingName(fullname string) (string, string, error) {
	match := settingNamePattern.FindStringSubmatch(strings.TrimSpace(fullname))
	if match == nil {
		return "", "", fmt.Errorf("%w: invalid setting name %q (expected group.name)", ErrSetting, fullname)
	}
	return match[1], match[2], nil
}

// Settings returns the catalog of known settings sorted by name.
func Settings() []Setting {
	out := make([]Setting, 0, len(settingCatalog))
	for _, setting := range settingCatalog {
		out = append(out, setting)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

func lookupSetting(fullname string) (Setting, error) {
	group, name, err := SplitSettingName(fullname)
	if err != nil {
		return Setting{}, err
	}
	setting, ok := settingCatalog[group+"."+name]
	if !ok {
		return Setting{}, fmt.Errorf("%w: unknown setting %q", ErrSetting, fullname)
	}
	return setting, nil
}

// GetSetting returns the stored value of a setting, or its default when it was
// never set. Values are typed: string, int64, float64 or bool.
func (s *Store) GetSetting(ctx context.Context, fullname string) (any, error) {
	setting, err := lookupSetting(fullname)
	if err != nil {
		return nil, err
	}
	ctx = ensureContext(ctx)
	var raw string
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE grp = ? AND name = ?", setting.Group, setting.Name,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return setting.Default, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", fullname, err)
	}
	value, err := convertSetting(setting.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("decode setting %s: %w", fullname, err)
	}
	return value, nil
}

// SetSetting stores value for the named setting. Strings are converted to the
// declared type when the conversion is lossless; anything else fails with
// ErrSetting.
func (s *Store) SetSetting(ctx context.Context, fullname string, value any) error {
	setting, err := lookupSetting(fullname)
	if err != nil {
		return err
	}
	coerced, err := coerceSetting(setting.Type, value)
	if err != nil {
		return fmt.Errorf("%s: %w", fullname, err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO settings (grp, name, value, vtype) VALUES (?, ?, ?, ?)
         ON CONFLICT(grp, name) DO UPDATE SET value = excluded.value, vtype = excluded.vtype`,
		setting.Group, setting.Name, encodeSetting(coerced), string(setting.Type),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", fullname, err)
	}
	return nil
}

// RecordLastChangeTime stores the time of the latest successful wallpaper change.
func (s *Store) RecordLastChangeTime(ctx context.Context, at time.Time) error {
	return s.SetSetting(ctx, LastChangeSetting, at.Unix())
}

// LastChangeTime returns the time of the latest successful change, zero when none.
func (s *Store) LastChangeTime(ctx context.Context) (time.Time, error) {
	value, err := s.GetSetting(ctx, LastChangeSetting)
	if err != nil {
		return time.Time{}, err
	}
	seconds, _ := value.(int64)
	if seconds <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// RecordLastSource stores the source name behind the current wallpaper.
func (s *Store) RecordLastSource(ctx context.Context, source string) error {
	return s.SetSetting(ctx, LastSourceSetting, source)
}

// LastSource returns the source of the latest successful change, empty when none.
func (s *Store) LastSource(ctx context.Context) (string, error) {
	value, err := s.GetSetting(ctx, LastSourceSetting)
	if err != nil {
		return "", err
	}
	source, _ := value.(string)
	return source, nil
}

func coerceSetting(vtype SettingType, value any) (any, error) {
	if str, ok := value.(string); ok {
		converted, err := convertSetting(vtype, str)
		if err != nil {
			return nil, err
		}
		return converted, nil
	}
	switch vtype {
	case TypeString:
		return nil, fmt.Errorf("%w: expected string, got %T", ErrSetting, value)
	case TypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v == math.Trunc(v) && !math.IsInf(v, 0) {
				return int64(v), nil
			}
		}
	case TypeFloat:
		switch v := value.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		}
	case TypeBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot store %T as %s", ErrSetting, value, vtype)
}

func convertSetting(vtype SettingType, raw string) (any, error) {
	switch vtype {
	case TypeString:
		return raw, nil
	case TypeInt:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an int", ErrSetting, raw)
		}
		return v, nil
	case TypeFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a float", ErrSetting, raw)
		}
		return v, nil
	case TypeBool:
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrSetting, raw)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrSetting, vtype)
	}
}

func encodeSetting(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
