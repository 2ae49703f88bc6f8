package main

import (
	"fmt"
	"strings"
	"time"

	"wizardry/internal/ipc"

	"github.com/gdamore/tcell/v2"
)

const (
	minColumn = 22
	barWidth  = 14
)

var (
	styleText  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleDim   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleTitle = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

func rgb(c [3]uint8) tcell.Color {
	return tcell.NewRGBColor(int32(c[0]), int32(c[1]), int32(c[2]))
}

// drawText writes s at x,y and returns the column after it.
func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) int {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

// bar renders ratio in [0,1] as a fixed width gauge.
func bar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio*float64(width) + 0.5)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", width-filled) + "]"
}

func formatClock(ns int64) string {
	d := time.Duration(ns)
	return fmt.Sprintf("%02d:%04.1f", int(d.Minutes()), d.Seconds()-float64(int(d.Minutes())*60))
}

// drawFrame paints the whole scoreboard. A nil frame shows the waiting screen.
func drawFrame(s tcell.Screen, f *ipc.ScoreboardFrame, connected bool) {
	s.Clear()
	w, h := s.Size()

	title := "WIZARDRY"
	if !connected {
		title += "  (server offline)"
	}
	drawText(s, 1, 0, styleTitle, title)

	if f == nil {
		drawText(s, 1, 2, styleDim, "waiting for the match server...")
		drawText(s, 1, h-1, styleDim, "q / Esc quit")
		return
	}

	drawText(s, 1, 1, styleText, fmt.Sprintf("match %s  %s  %s  frame %d",
		shortID(f.MatchID), strings.ToUpper(f.Status), formatClock(f.ClockNs), f.Frame))

	n := len(f.Participants)
	col := minColumn
	if n > 0 && w/n > col {
		col = w / n
	}
	for i := range f.Participants {
		drawColumn(s, 1+i*col, 3, &f.Participants[i], f.WinScore)
	}

	if f.Status == "over" && f.WinnerID >= 0 && f.WinnerID < n {
		winner := f.Participants[f.WinnerID]
		banner := fmt.Sprintf(" WAND %d WINS WITH %d ", winner.ID, winner.Score)
		drawText(s, 1, 12, tcell.StyleDefault.Background(rgb(winner.Color)).Foreground(tcell.ColorBlack).Bold(true), banner)
	}

	drawText(s, 1, h-1, styleDim, "q / Esc quit")
}

func drawColumn(s tcell.Screen, x, y int, p *ipc.ParticipantData, winScore int) {
	header := tcell.StyleDefault.Background(rgb(p.Color)).Foreground(tcell.ColorBlack).Bold(true)
	drawText(s, x, y, header, fmt.Sprintf(" WAND %d ", p.ID))

	switch {
	case p.Forfeited:
		drawText(s, x, y+1, styleDim, "forfeited")
	case !p.Connected:
		drawText(s, x, y+1, styleDim, "offline")
	default:
		state := p.State
		if p.TargetID >= 0 {
			state += fmt.Sprintf(" → %d", p.TargetID)
		}
		drawText(s, x, y+1, styleText, state)
	}

	ratio := 0.0
	if winScore > 0 {
		ratio = float64(p.Score) / float64(winScore)
	}
	drawText(s, x, y+2, styleText, fmt.Sprintf("score  %d/%d", p.Score, winScore))
	drawText(s, x, y+3, tcell.StyleDefault.Foreground(rgb(p.Color)), bar(ratio, barWidth))
	drawText(s, x, y+4, styleText, "charge "+bar(p.Charge, barWidth-7))
	drawText(s, x, y+5, styleText, "shield "+bar(p.Shield, barWidth-7))

	next := drawText(s, x, y+6, styleText, "led    ")
	drawText(s, next, y+6, tcell.StyleDefault.Foreground(rgb(p.LED)), "██████")
	if p.Rumble > 0 {
		drawText(s, x, y+7, styleTitle, fmt.Sprintf("rumble %.0f%%", p.Rumble*100))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
