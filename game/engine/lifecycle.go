package engine

// sweepDestroyed removes every tank and brick whose hp has run out and
// updates the counters and latches that depend on them
func (w *World) sweepDestroyed() {
	w.Grid.Each(func(x, y int, c Cell) {
		pos := Position{X: x, Y: y}
		switch c := c.(type) {
		case *Tank:
			if c.HP > 0 {
				return
			}
			w.Grid.Clear(x, y)
			w.promoteOverlay(pos)
			if c == w.Player {
				w.Player = nil
			}
			w.emit(EventDestroy, pos, c.ID, KindTank)
			w.Lives--
			if w.Lives <= 0 {
				w.Lives = 0
				w.loseGame()
			}
		case *EnemyTank:
			if c.HP > 0 {
				return
			}
			w.Grid.Clear(x, y)
			w.promoteOverlay(pos)
			delete(w.Enemies, c.ID)
			w.Remaining--
			w.emit(EventDestroy, pos, c.ID, KindEnemyTank)
		case *Brick:
			if c.HP > 0 {
				return
			}
			w.Grid.Clear(x, y)
			w.promoteOverlay(pos)
			w.emit(EventDestroy, pos, PlayerID, c.Kind())
			if c.Base {
				w.loseGame()
			}
		case nil, *Stone, *Mirror, *Water, *Bullet:
		}
	})
}

// checkWin latches the win once every enemy, deployed or held in reserve,
// has been destroyed
func (w *World) checkWin() {
	if w.Over() || w.TotalFoes == 0 {
		return
	}
	if w.Remaining == 0 && w.Reserve == 0 {
		w.Win = true
		w.SettleAt = w.Tick + w.Rules.SettleDelay
		w.emit(EventVictory, w.PlayerSpawn, PlayerID, "")
	}
}

// loseGame latches game over. It is a no-op once either latch is set.
func (w *World) loseGame() {
	if w.Over() {
		return
	}
	w.GameOver = true
	w.SettleAt = w.Tick + w.Rules.SettleDelay
	w.emit(EventGameOver, w.PlayerSpawn, PlayerID, "")
}

// settle marks the world settled once the end-of-run countdown elapses
func (w *World) settle() {
	if w.Over() && !w.Settled && w.Tick >= w.SettleAt {
		w.Settled = true
	}
}

// Respawn puts a fresh player tank back on the spawn point. It only
// succeeds while the player is dead, lives remain and the run is not over.
func (w *World) Respawn() bool {
	if w.PlayerAlive() || w.Lives <= 0 || w.Over() {
		return false
	}
	if _, err := w.PlacePlayer(w.PlayerSpawn, Right); err != nil {
		return false
	}
	w.emit(EventRespawn, w.PlayerSpawn, PlayerID, KindTank)
	return true
}

// checkPowerup grants one extra life when half the enemies fall before the
// level's deadline
func (w *World) checkPowerup() {
	if w.PowerupGot || w.PowerupReq <= 0 || w.TotalFoes == 0 {
		return
	}
	destroyed := w.TotalFoes - w.Remaining - w.Reserve
	if destroyed >= w.TotalFoes-w.TotalFoes/2 && w.Time < w.PowerupReq {
		w.Lives++
		w.PowerupGot = true
		w.emit(EventPowerup, w.PlayerSpawn, PlayerID, "")
	}
}
