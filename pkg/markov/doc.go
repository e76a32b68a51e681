/*
Package markov implements a higher-order Markov chain over tokenized text,
for generating novel text that statistically resembles a training corpus.

A Model owns a frequency table mapping every observed context (a run of
`order` consecutive tokens) to the tokens seen to follow it. Training slides
a window over each line of input; generation walks the table with
temperature-scaled weighted sampling and probabilistic stopping at
sentence-ending tokens. Tables built independently (for example from corpus
chunks trained in parallel by the caller) combine via a commutative,
associative merge, and models round-trip losslessly through a JSON snapshot.

The random source is injectable, so a fixed seed reproduces an exact output
sequence.
*/
package markov
