package terminal

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/wricardo/battlecity/game/engine"
)

const (
	mapLeft = 1
	mapTop  = 1
)

var (
	styleDefault = tcell.StyleDefault
	styleBorder  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHUD     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleHelp    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleForest  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorDarkGreen)
)

// spriteStyle picks the colors of a sprite
func spriteStyle(s engine.Sprite) tcell.Style {
	switch s.Kind {
	case engine.KindStone:
		return tcell.StyleDefault.Foreground(tcell.ColorSilver)
	case engine.KindBrick:
		if s.HP > 1 {
			return tcell.StyleDefault.Foreground(tcell.ColorOrangeRed)
		}
		return tcell.StyleDefault.Foreground(tcell.ColorMaroon)
	case engine.KindHomeBase:
		return tcell.StyleDefault.Foreground(tcell.ColorGold).Bold(true)
	case engine.KindMirror:
		return tcell.StyleDefault.Foreground(tcell.ColorAqua)
	case engine.KindWater:
		return tcell.StyleDefault.Foreground(tcell.ColorBlue).Background(tcell.ColorNavy)
	case engine.KindTank:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	case engine.KindEnemyTank:
		if s.Variant == string(engine.Buff) {
			return tcell.StyleDefault.Foreground(tcell.ColorFuchsia).Bold(true)
		}
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	case engine.KindBullet:
		return tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	}
	return styleDefault
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

// Draw renders one frame: the bordered map, the HUD below it and the key
// help. Forest is drawn last as a canopy hiding what moves under it.
func Draw(screen tcell.Screen, v engine.View) {
	screen.Clear()

	w, h := v.Width, v.Height
	if v.HUD.Settled {
		// A settled view carries no sprites, keep the frame size
		w, h = max(w, 40), max(h, 3)
	}

	for x := -1; x <= w; x++ {
		screen.SetContent(mapLeft+x, mapTop-1, '-', nil, styleBorder)
		screen.SetContent(mapLeft+x, mapTop+h, '-', nil, styleBorder)
	}
	for y := 0; y < h; y++ {
		screen.SetContent(mapLeft-1, mapTop+y, '|', nil, styleBorder)
		screen.SetContent(mapLeft+w, mapTop+y, '|', nil, styleBorder)
	}

	if v.HUD.Settled {
		banner := "GAME OVER - press Enter to play again"
		if v.HUD.Win {
			banner = "STAGE CLEAR - press Enter to continue"
		}
		drawText(screen, mapLeft+1, mapTop+h/2, styleBanner, banner)
	} else {
		for _, s := range v.Cells {
			screen.SetContent(mapLeft+s.X, mapTop+s.Y, engine.Glyph(s), nil, spriteStyle(s))
		}
		for _, s := range v.Overlay {
			screen.SetContent(mapLeft+s.X, mapTop+s.Y, engine.Glyph(s), nil, spriteStyle(s))
		}
		for _, p := range v.Forest {
			screen.SetContent(mapLeft+p.X, mapTop+p.Y, '%', nil, styleForest)
		}
	}

	row := mapTop + h + 1
	drawText(screen, 0, row, styleHUD, strings.TrimSuffix(v.Status(), "\n"))
	if !v.HUD.Started && !v.HUD.Settled {
		drawText(screen, 0, row+1, styleBanner, "GET READY")
	}
	drawText(screen, 0, row+2, styleHelp, "arrows/hjkl move  space fire  r respawn  enter continue  m mute  q quit")

	screen.Show()
}
