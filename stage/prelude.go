package stage

// prelude holds the helpers that suspend a script. They are written in Lua
// because only Lua code can yield a coroutine that Go resumes.
const prelude = `
function yield()
  coroutine.yield()
end

function wait(secs)
  local deadline = timer() + secs
  repeat coroutine.yield() until timer() >= deadline
end

function wait_until(cond)
  while not cond() do coroutine.yield() end
end

function forever(body)
  while true do
    body()
    coroutine.yield()
  end
end

function repeat_times(n, body)
  for i = 1, n do
    body(i)
    coroutine.yield()
  end
end

function glide(secs, x, y)
  local x0, y0 = x_position(), y_position()
  local start = timer()
  while secs > 0 do
    local t = (timer() - start) / secs
    if t >= 1 then break end
    go_to(x0 + (x - x0) * t, y0 + (y - y0) * t)
    coroutine.yield()
  end
  go_to(x, y)
end

function say(text, secs)
  _say(text)
  if secs then
    wait(secs)
    _say("")
  end
end

function ask(text)
  _ask(text)
  while _waiting() do coroutine.yield() end
  return answer()
end

function broadcast(name)
  _broadcast(name)
end

function broadcast_and_wait(name)
  local ids = _broadcast(name)
  while not _all_done(ids) do coroutine.yield() end
end

function stop_all()
  _stop_all()
  coroutine.yield()
end

function stop_this()
  _stop_this()
  coroutine.yield()
end
`
