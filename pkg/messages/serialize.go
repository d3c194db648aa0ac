package messages

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	snapshotfb "github.com/AmatanHead/points-game/flatbuffers/snapshot"
	"github.com/AmatanHead/points-game/pkg/game/types"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

// SerializeSnapshot encodes a snapshot as a zstd compressed flatbuffer.
func SerializeSnapshot(s *types.GameSnapshot) ([]byte, error) {
	b, err := SerializeSnapshotFlatbuffer(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

func DeserializeSnapshot(data []byte) (*types.GameSnapshot, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()

	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed snapshot: %v", err)
	}

	s, err := DeserializeSnapshotFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %v", err)
	}

	return s, nil
}

func SerializeSnapshotFlatbuffer(s *types.GameSnapshot) ([]byte, error) {
	width, rows := s.Width(), s.Rows()
	if width > 0xffff || rows > 0xffff {
		return nil, fmt.Errorf("field of %dx%d is too large", width, rows)
	}

	builder := flatbuffers.NewBuilder(1024)

	cells := make([]flatbuffers.UOffsetT, 0, width*rows)
	for x := 0; x < width; x++ {
		for y := 0; y < rows; y++ {
			cells = append(cells, serializeCellFlatbuffer(builder, s.Cell(x, y)))
		}
	}
	snapshotfb.SnapshotStartCellsVector(builder, len(cells))
	for i := len(cells) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(cells[i])
	}
	cellsVector := builder.EndVector(len(cells))

	players := make([]flatbuffers.UOffsetT, 0, len(s.DrawOffers))
	for _, player := range snapshotPlayers(s) {
		players = append(players, serializePlayerFlatbuffer(builder, s, player))
	}
	snapshotfb.SnapshotStartPlayersVector(builder, len(players))
	for i := len(players) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(players[i])
	}
	playersVector := builder.EndVector(len(players))

	contract := builder.CreateString(s.Contract.String())
	player1 := builder.CreateString(s.Player1.String())
	player2 := builder.CreateString(s.Player2.String())
	currentPlayer := builder.CreateString(s.CurrentPlayer.String())
	winner := builder.CreateString(s.Winner.String())

	snapshotfb.SnapshotStart(builder)
	snapshotfb.SnapshotAddContract(builder, contract)
	snapshotfb.SnapshotAddHeight(builder, s.Height)
	snapshotfb.SnapshotAddWidth(builder, uint16(width))
	snapshotfb.SnapshotAddRows(builder, uint16(rows))
	snapshotfb.SnapshotAddPlayer1(builder, player1)
	snapshotfb.SnapshotAddPlayer2(builder, player2)
	snapshotfb.SnapshotAddCurrentPlayer(builder, currentPlayer)
	snapshotfb.SnapshotAddWinner(builder, winner)
	snapshotfb.SnapshotAddGameOver(builder, s.GameOver)
	snapshotfb.SnapshotAddCells(builder, cellsVector)
	snapshotfb.SnapshotAddPlayers(builder, playersVector)
	root := snapshotfb.SnapshotEnd(builder)
	builder.Finish(root)

	return builder.FinishedBytes(), nil
}

func serializeCellFlatbuffer(builder *flatbuffers.Builder, cell types.Cell) flatbuffers.UOffsetT {
	owner := builder.CreateString(cell.Owner.String())
	territoryOwner := builder.CreateString(cell.TerritoryOwner.String())

	snapshotfb.CellStart(builder)
	snapshotfb.CellAddOwner(builder, owner)
	snapshotfb.CellAddTerritoryOwner(builder, territoryOwner)
	snapshotfb.CellAddMoveIndex(builder, cell.MoveIndex)
	return snapshotfb.CellEnd(builder)
}

func serializePlayerFlatbuffer(builder *flatbuffers.Builder, s *types.GameSnapshot, player types.Address) flatbuffers.UOffsetT {
	stake := "0"
	if amount, ok := s.Stakes[player]; ok && amount != nil {
		stake = amount.String()
	}
	address := builder.CreateString(player.String())
	stakeString := builder.CreateString(stake)

	snapshotfb.PlayerEntryStart(builder)
	snapshotfb.PlayerEntryAddPlayer(builder, address)
	snapshotfb.PlayerEntryAddDrawOffer(builder, s.DrawOffers[player])
	snapshotfb.PlayerEntryAddFinishOffer(builder, s.FinishOffers[player])
	snapshotfb.PlayerEntryAddStake(builder, stakeString)
	return snapshotfb.PlayerEntryEnd(builder)
}

// snapshotPlayers lists every address with per-player data, in a stable order.
func snapshotPlayers(s *types.GameSnapshot) []types.Address {
	seen := make(map[types.Address]bool)
	var players []types.Address
	add := func(a types.Address) {
		if !seen[a] {
			seen[a] = true
			players = append(players, a)
		}
	}
	add(s.Player1)
	add(s.Player2)
	for _, m := range []map[types.Address]bool{s.DrawOffers, s.FinishOffers} {
		for a := range m {
			if !seen[a] {
				seen[a] = true
				players = append(players, a)
			}
		}
	}
	for a := range s.Stakes {
		add(a)
	}
	return players
}

func DeserializeSnapshotFlatbuffer(b []byte) (*types.GameSnapshot, error) {
	fb := snapshotfb.GetRootAsSnapshot(b, 0)
	width, rows := int(fb.Width()), int(fb.Rows())
	if fb.CellsLength() != width*rows {
		return nil, fmt.Errorf("expected %d cells, got %d", width*rows, fb.CellsLength())
	}

	s := types.NewGameSnapshot(types.Address(fb.Contract()), fb.Height(), width, rows)
	s.Player1 = types.Address(fb.Player1())
	s.Player2 = types.Address(fb.Player2())
	s.CurrentPlayer = types.Address(fb.CurrentPlayer())
	s.Winner = types.Address(fb.Winner())
	s.GameOver = fb.GameOver()

	cell := &snapshotfb.Cell{}
	for i := 0; i < fb.CellsLength(); i++ {
		if !fb.Cells(cell, i) {
			return nil, fmt.Errorf("failed to get cell at index %d", i)
		}
		s.Field[i/rows][i%rows] = types.Cell{
			Owner:          types.Address(cell.Owner()),
			TerritoryOwner: types.Address(cell.TerritoryOwner()),
			MoveIndex:      cell.MoveIndex(),
		}
	}

	entry := &snapshotfb.PlayerEntry{}
	for i := 0; i < fb.PlayersLength(); i++ {
		if !fb.Players(entry, i) {
			return nil, fmt.Errorf("failed to get player entry at index %d", i)
		}
		player := types.Address(entry.Player())
		stake, ok := new(big.Int).SetString(string(entry.Stake()), 10)
		if !ok {
			return nil, fmt.Errorf("invalid stake %q for %s", entry.Stake(), player)
		}
		s.DrawOffers[player] = entry.DrawOffer()
		s.FinishOffers[player] = entry.FinishOffer()
		s.Stakes[player] = stake
	}

	return s, nil
}
