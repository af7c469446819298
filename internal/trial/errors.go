package trial

import "errors"

// ErrResetNotGameOver is returned by Reset when the session is not finished.
var ErrResetNotGameOver = errors.New("reset called outside game over")
