package view

import (
	"bytes"
	"encoding/json"
	"strings"

	"patient-tile/internal/tile"
)

const (
	noPatientText    = "This Panel will display when there is no patient detected. (getPatient returned null)."
	patientIntroText = "The patient object will be fully available for patient evaluation or data transmission."
	fetchFailedText  = "Unable to load patient."
)

// Mode 页面模式
type Mode int

const (
	ModeRoot Mode = iota
	ModeTile
	ModeOther
)

// Tile 磁贴指示器
type Tile struct {
	Visible    bool   `json:"visible"`
	Letter     string `json:"letter"`
	Background string `json:"background"`
}

// Page 渲染结果
type Page struct {
	Path       string `json:"path"`
	Title      string `json:"title"`
	ModeText   string `json:"mode"`
	Body       string `json:"body"`
	Background string `json:"background"`
	Tile       Tile   `json:"tile"`
}

// NormalizePath 去掉末尾斜杠，空路径视为 "/"
func NormalizePath(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// ModeOf 只识别 "/" 和 "/tile"，其他路径一律按默认面板处理
func ModeOf(path string) Mode {
	switch NormalizePath(path) {
	case "/":
		return ModeRoot
	case "/tile":
		return ModeTile
	default:
		return ModeOther
	}
}

// Render 根据路径和会话状态生成页面
func Render(path string, snap tile.Snapshot, patient tile.Patient, fetchErr error) Page {
	page := Page{
		Path:       path,
		Background: string(tile.ColorDefault),
		Tile: Tile{
			Letter:     snap.Letter(),
			Background: string(snap.Color),
		},
	}

	present := patient.Present()
	switch ModeOf(path) {
	case ModeRoot:
		page.ModeText = "Mode: root ( / )"
		if present {
			page.Title = "Patient Page"
			page.Body = patientIntroText + "\n\n\n\n" + Pretty(patient)
		} else {
			page.Title = "Default Page"
			page.Body = noPatientText
		}
	case ModeTile:
		page.Title = "Tile Mode"
		page.ModeText = "Mode: tile ( /tile )"
		page.Body = panelBody(patient)
		page.Background = string(snap.Color)
		page.Tile.Visible = true
	default:
		page.Title = "Default Panel"
		page.ModeText = "Mode: " + path
		page.Body = panelBody(patient)
	}

	if fetchErr != nil {
		page.Body = fetchFailedText
	}
	return page
}

// Pretty 两空格缩进的 JSON；无法解析时原样返回
func Pretty(patient tile.Patient) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, patient, "", "  "); err != nil {
		return string(patient)
	}
	return buf.String()
}

func panelBody(patient tile.Patient) string {
	if patient.Present() {
		return Pretty(patient)
	}
	return noPatientText
}
