package slogx

import "log/slog"

// str captures types whose underlying type is string (e.g. ModelID,
// TransactionID, ActionName, StepID, Phase) so attribute helpers accept
// saga's id types directly without a cast at every call site.
type str interface {
	~string
}

func ModelID[T str](id T) slog.Attr {
	return slog.String("model_id", string(id))
}

func TxID[T str](id T) slog.Attr {
	return slog.String("transaction_id", string(id))
}

func StepID[T str](id T) slog.Attr {
	return slog.String("step_id", string(id))
}

func Action[T str](action T) slog.Attr {
	return slog.String("action", string(action))
}

func Phase[T str](phase T) slog.Attr {
	return slog.String("phase", string(phase))
}

func State[T str](state T) slog.Attr {
	return slog.String("state", string(state))
}

func Status[T str](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
