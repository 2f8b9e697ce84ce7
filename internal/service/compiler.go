package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"flamenco-core/internal/entity"
)

// Compiler turns job settings into the tasks a job starts with.
type Compiler interface {
	Compile(jobType string, settings json.RawMessage) ([]entity.TaskSpec, error)
}

const (
	JobTypeSleep         = "sleep"
	JobTypeBlenderRender = "blender-render"
)

type frameSettings struct {
	Frames        string  `json:"frames"`
	ChunkSize     int     `json:"chunk_size"`
	TimeInSeconds float64 `json:"time_in_seconds"`
	BlenderCmd    string  `json:"blender_cmd"`
	Filepath      string  `json:"filepath"`
	RenderOutput  string  `json:"render_output"`
	Format        string  `json:"format"`
}

type command struct {
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings"`
}

// FrameCompiler chunks a frame range into one task per chunk.
type FrameCompiler struct{}

func (FrameCompiler) Compile(jobType string, settings json.RawMessage) ([]entity.TaskSpec, error) {
	var fs frameSettings
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &fs); err != nil {
			return nil, fmt.Errorf("%w: settings: %v", entity.ErrInvalidInput, err)
		}
	}
	if fs.ChunkSize <= 0 {
		fs.ChunkSize = 1
	}

	var build func(chunk string) []command
	switch jobType {
	case JobTypeSleep:
		build = func(string) []command {
			return []command{
				{Name: "echo", Settings: map[string]any{"message": "Preparing to sleep"}},
				{Name: "sleep", Settings: map[string]any{"time_in_seconds": fs.TimeInSeconds}},
			}
		}
	case JobTypeBlenderRender:
		if fs.Filepath == "" || fs.RenderOutput == "" {
			return nil, fmt.Errorf("%w: filepath and render_output are required", entity.ErrInvalidInput)
		}
		if fs.BlenderCmd == "" {
			fs.BlenderCmd = "{blender}"
		}
		build = func(chunk string) []command {
			return []command{{Name: "blender_render", Settings: map[string]any{
				"blender_cmd":   fs.BlenderCmd,
				"filepath":      fs.Filepath,
				"render_output": fs.RenderOutput,
				"format":        fs.Format,
				"frames":        chunk,
			}}}
		}
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", entity.ErrInvalidInput, jobType)
	}

	frames, err := ParseFrameRange(fs.Frames)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames to render", entity.ErrInvalidInput)
	}

	var specs []entity.TaskSpec
	for start := 0; start < len(frames); start += fs.ChunkSize {
		end := min(start+fs.ChunkSize, len(frames))
		chunk := FrameRangeString(frames[start:end])

		commands, err := json.Marshal(build(chunk))
		if err != nil {
			return nil, err
		}
		specs = append(specs, entity.TaskSpec{
			Name:     jobType + "-" + chunk,
			Commands: commands,
		})
	}
	return specs, nil
}

const (
	maxFramesPerRange = 100000
	maxFramesPerJob   = 100000
	maxFrameNumber    = 1 << 30
)

// ParseFrameRange parses "1-3, 7, 10-12" into a sorted list of unique frames.
func ParseFrameRange(s string) ([]int, error) {
	seen := map[int]bool{}
	var frames []int

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi := part, part
		if i := strings.Index(part[1:], "-"); i >= 0 {
			lo, hi = part[:i+1], part[i+2:]
		}
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: frame range %q", entity.ErrInvalidInput, part)
		}
		last, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || last < first || last-first >= maxFramesPerRange {
			return nil, fmt.Errorf("%w: frame range %q", entity.ErrInvalidInput, part)
		}
		if first < -maxFrameNumber || last > maxFrameNumber {
			return nil, fmt.Errorf("%w: frame range %q out of bounds", entity.ErrInvalidInput, part)
		}

		for f := first; f <= last; f++ {
			if seen[f] {
				continue
			}
			if len(frames) == maxFramesPerJob {
				return nil, fmt.Errorf("%w: more than %d frames", entity.ErrInvalidInput, maxFramesPerJob)
			}
			seen[f] = true
			frames = append(frames, f)
		}
	}
	sort.Ints(frames)
	return frames, nil
}

// FrameRangeString is the inverse of ParseFrameRange for sorted frames:
// [18 20 21] becomes "18,20-21".
func FrameRangeString(frames []int) string {
	var parts []string
	for i := 0; i < len(frames); {
		j := i
		for j+1 < len(frames) && frames[j+1] == frames[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(frames[i]))
		} else {
			parts = append(parts, strconv.Itoa(frames[i])+"-"+strconv.Itoa(frames[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}
