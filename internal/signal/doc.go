// Package signal implements deferred signal dispatch for a cooperatively
// scheduled interpreter.
//
// OS interrupts cannot safely re-enter an interpreter whose internal state
// may be mid-mutation, so delivery is split in two halves:
//
//   - Capture runs in the asynchronous context (an os/signal forwarder on
//     POSIX, the console control handler thread on Windows). It appends a
//     Record to a bounded Channel and sets a pending flag, nothing else.
//   - The Dispatcher drains the Channel from the interpreter thread, only
//     at declared safe points, and invokes registered callbacks in FIFO
//     order through an Invoker.
//
// The Channel is the only state shared between the two contexts. Two
// implementations exist: a lock-free single-writer/single-reader ring for
// platforms where capture cannot be re-entered, and a mutex-guarded variant
// for platforms where capture runs on a genuine second thread. Selection
// happens per platform at build time and can be overridden via config.
//
// When the channel is full new records are silently dropped; the earliest
// arrivals survive. Capture has no way to report errors upward, so lossy
// under pressure is the accepted policy.
package signal
